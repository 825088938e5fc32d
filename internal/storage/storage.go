// Package storage issues time-limited upload URLs and checks object
// existence in the configured blob container.
package storage

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	ProviderS3  = "s3"
	ProviderOSS = "oss"

	documentContentType = "application/pdf"
)

// Store is the blob backend used by the submission workflow.
type Store interface {
	// IssueWriteURL returns a URL that permits a single PUT to path until ttl elapses.
	IssueWriteURL(ctx context.Context, path string, ttl time.Duration) (string, error)
	// Exists reports whether an object is present at path. A missing object
	// is (false, nil); any other failure is returned as an error.
	Exists(ctx context.Context, path string) (bool, error)
	// ObjectURL is the canonical, unsigned URL recorded for a stored object.
	ObjectURL(path string) string
}

// DocumentPath builds "{institutionCode}/{usn}/{slug}.pdf".
func DocumentPath(institutionCode, usn, slug string) (string, error) {
	for _, seg := range []string{institutionCode, usn, slug} {
		if seg == "" || seg == "." || seg == ".." || strings.ContainsAny(seg, `/\`) {
			return "", fmt.Errorf("invalid path segment %q", seg)
		}
	}
	return institutionCode + "/" + usn + "/" + slug + ".pdf", nil
}
