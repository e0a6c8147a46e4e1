package project

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"demoforge/internal/demo"
	"demoforge/internal/progress"
)

const projectColumns = "id, name, repo_url, website_url, audience, target_length, language, stage, failed_stage, error_message, output_path, run_count, last_run_at, created_at, updated_at, analysis_json, script_json, captures_json, voice_json, video_json, fingerprints_json, progress_json"

func scanProject(scanner interface{ Scan(dest ...any) error }) (*Project, error) {
	var (
		id           string
		name         string
		repoURL      sql.NullString
		websiteURL   sql.NullString
		audience     string
		targetLength int
		lang         string
		stage        string
		failedStage  sql.NullString
		errorMessage sql.NullString
		outputPath   sql.NullString
		runCount     sql.NullInt64
		lastRunRaw   sql.NullString
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
		analysis     sql.NullString
		script       sql.NullString
		captures     sql.NullString
		voice        sql.NullString
		video        sql.NullString
		fingerprints sql.NullString
		progressRaw  sql.NullString
	)
	if err := scanner.Scan(
		&id,
		&name,
		&repoURL,
		&websiteURL,
		&audience,
		&targetLength,
		&lang,
		&stage,
		&failedStage,
		&errorMessage,
		&outputPath,
		&runCount,
		&lastRunRaw,
		&createdRaw,
		&updatedRaw,
		&analysis,
		&script,
		&captures,
		&voice,
		&video,
		&fingerprints,
		&progressRaw,
	); err != nil {
		return nil, err
	}

	p := &Project{
		ID:           id,
		Name:         name,
		RepoURL:      repoURL.String,
		WebsiteURL:   websiteURL.String,
		Audience:     demo.Audience(audience),
		TargetLength: targetLength,
		Language:     lang,
		Stage:        Stage(stage),
		FailedStage:  Stage(failedStage.String),
		ErrorMessage: errorMessage.String,
		OutputPath:   outputPath.String,
		RunCount:     int(runCount.Int64),
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		p.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		p.UpdatedAt = updated
	}
	if lastRunRaw.Valid {
		if lastRun, err := parseTimeString(lastRunRaw.String); err == nil {
			p.LastRunAt = &lastRun
		}
	}

	var err error
	if p.Analysis, err = decodeColumn[demo.AnalysisResult](analysis, "analysis"); err != nil {
		return nil, err
	}
	if p.Script, err = decodeColumn[demo.Script](script, "script"); err != nil {
		return nil, err
	}
	if p.Captures, err = decodeColumn[demo.CaptureSet](captures, "captures"); err != nil {
		return nil, err
	}
	if p.Voice, err = decodeColumn[demo.VoiceSet](voice, "voice"); err != nil {
		return nil, err
	}
	if p.Video, err = decodeColumn[demo.Video](video, "video"); err != nil {
		return nil, err
	}
	if p.Progress, err = decodeColumn[progress.Snapshot](progressRaw, "progress"); err != nil {
		return nil, err
	}
	p.Fingerprints = map[string]string{}
	if fingerprints.Valid && fingerprints.String != "" {
		if err := json.Unmarshal([]byte(fingerprints.String), &p.Fingerprints); err != nil {
			return nil, fmt.Errorf("decode fingerprints for %s: %w", id, err)
		}
	}
	return p, nil
}

func decodeColumn[T any](raw sql.NullString, column string) (*T, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var v T
	if err := json.Unmarshal([]byte(raw.String), &v); err != nil {
		return nil, fmt.Errorf("decode %s column: %w", column, err)
	}
	return &v, nil
}

// encodeColumn returns nil for nil pointers so the column stays NULL.
func encodeColumn[T any](v *T) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
