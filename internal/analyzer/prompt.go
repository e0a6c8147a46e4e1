package analyzer

import (
	"fmt"
	"strings"
)

const systemPrompt = `You are a product marketing analyst preparing material for a short narrated demo video.
Read the repository and website facts you are given and describe the product.
Respond with a single JSON object that matches the provided schema. Do not invent URLs:
demo_urls must come from the supplied links, homepage or website.`

const maxReadmeChars = 12000

func buildUserPrompt(repo *RepoInfo, page *PageInfo) string {
	var b strings.Builder
	b.WriteString("Analyze this product and extract the information needed to script a demo video.\n\n")

	if repo != nil {
		b.WriteString("## Repository\n")
		fmt.Fprintf(&b, "Name: %s/%s\nURL: %s\n", repo.Owner, repo.Name, repo.URL)
		if repo.Description != "" {
			fmt.Fprintf(&b, "Description: %s\n", repo.Description)
		}
		if repo.Homepage != "" {
			fmt.Fprintf(&b, "Homepage: %s\n", repo.Homepage)
		}
		if len(repo.Topics) > 0 {
			fmt.Fprintf(&b, "Topics: %s\n", strings.Join(repo.Topics, ", "))
		}
		if len(repo.Languages) > 0 {
			fmt.Fprintf(&b, "Languages: %s\n", strings.Join(repo.Languages, ", "))
		}
		if repo.License != "" {
			fmt.Fprintf(&b, "License: %s\n", repo.License)
		}
		if repo.Readme != "" {
			readme := repo.Readme
			if len(readme) > maxReadmeChars {
				readme = readme[:maxReadmeChars]
			}
			b.WriteString("\nREADME:\n")
			b.WriteString(readme)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if page != nil {
		b.WriteString("## Website\n")
		fmt.Fprintf(&b, "URL: %s\nTitle: %s\n", page.URL, page.Title)
		if page.Description != "" {
			fmt.Fprintf(&b, "Description: %s\n", page.Description)
		}
		if len(page.Headings) > 0 {
			b.WriteString("\nPage structure:\n")
			for _, h := range page.Headings {
				fmt.Fprintf(&b, "%s %s\n", strings.Repeat("#", h.Level), h.Text)
			}
		}
		if len(page.Links) > 0 {
			b.WriteString("\nKey links:\n")
			for i, l := range page.Links {
				if i == 15 {
					break
				}
				fmt.Fprintf(&b, "- %s: %s\n", l.Text, l.Href)
			}
		}
		if page.Text != "" {
			text := page.Text
			if len(text) > 3000 {
				text = text[:3000]
			}
			b.WriteString("\nMain content:\n")
			b.WriteString(text)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString(`Your task:
1. Identify the product name and a one-line tagline.
2. Categorize the product (for example "Web framework", "Database", "CLI tool").
3. List the target users.
4. Extract 5-10 key features with importance scores from 1 to 10; set demo_worthy for features that can be shown visually.
5. List the tech stack.
6. List 3-5 common use cases.
7. Describe the competitive advantage in one or two sentences.
8. Suggest up to 5 URLs worth capturing for the demo.`)
	return b.String()
}
