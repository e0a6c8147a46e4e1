// Package analyzer inspects a product's GitHub repository and/or website and
// asks the LLM for a structured analysis of what the product is and which of
// its features are worth showing in a demo.
//
// Repository facts come from the GitHub REST API (metadata, topics, languages
// and the README). Website facts come from parsing the landing page with
// golang.org/x/net/html. Either source may fail as long as the other one
// succeeds; the stage only fails with ErrSourceUnreachable when nothing could
// be fetched.
package analyzer
