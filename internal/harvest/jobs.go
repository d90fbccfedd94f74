package harvest

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// ValidateJobs checks every job in the list.
func ValidateJobs(jobs []Job) error {
	for i, job := range jobs {
		if err := job.Validate(); err != nil {
			return fmt.Errorf("job %d: %w", i, err)
		}
	}
	return nil
}

// DecodeJobs parses and validates a JSON array of job records.
func DecodeJobs(r io.Reader) ([]Job, error) {
	jobs, err := ParseJobs(r)
	if err != nil {
		return nil, err
	}
	if err := ValidateJobs(jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// ParseJobs decodes a JSON array of job records without validating them, so
// callers can fill defaults first. Unknown fields are rejected.
func ParseJobs(r io.Reader) ([]Job, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read jobs: %w", err)
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("%w: jobs must be a JSON array", ErrInvalidJobList)
	}
	var jobs []Job
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&jobs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJobList, err)
	}
	if jobs == nil {
		jobs = []Job{}
	}
	return jobs, nil
}

// ReadDomains reads one domain per line, skipping blanks and duplicates.
func ReadDomains(r io.Reader) ([]string, error) {
	var domains []string
	seen := make(map[string]struct{})
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		domain := strings.TrimSpace(scanner.Text())
		if domain == "" {
			continue
		}
		if _, ok := seen[domain]; ok {
			continue
		}
		seen[domain] = struct{}{}
		domains = append(domains, domain)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read domains: %w", err)
	}
	return domains, nil
}

// NormalizeDomain lower-cases a domain and strips a trailing dot.
func NormalizeDomain(domain string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(domain)), ".")
}
