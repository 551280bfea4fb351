package nexpose

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/textproto"
	"regexp"
	"strings"
)

// AdhocReport generates a report synchronously and returns its decoded
// content. SQL reports yield CSV text; templated reports yield the
// rendered document.
func (c *Client) AdhocReport(ctx context.Context, cfg AdhocReportConfig) ([]byte, error) {
	sid, err := c.session()
	if err != nil {
		return nil, err
	}
	req := reportAdhocGenerateRequest{
		SessionID: sid,
		Config: adhocConfigXML{
			Format:     cfg.Format,
			TemplateID: cfg.TemplateID,
		},
	}
	for _, f := range cfg.Filters {
		req.Config.Filters = append(req.Config.Filters, filterXML{Type: f.Type, ID: f.ID})
	}

	const op = "ReportAdhocGenerateRequest"
	body, contentType, err := c.post(ctx, op, req)
	if err != nil {
		return nil, err
	}

	boundary, ok := multipartBoundary(contentType)
	if !ok {
		// errors come back as a plain XML document
		if err := decode(op, body, nil); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: content type %q", ErrNoReportContent, contentType)
	}
	return readReportParts(op, body, boundary)
}

var boundaryPattern = regexp.MustCompile(`boundary=("?)([^";\s]+)`)

// multipartBoundary extracts the boundary from a multipart/mixed content
// type. Some console versions append parameters after the boundary that
// mime.ParseMediaType rejects, so a pattern match is the fallback.
func multipartBoundary(contentType string) (string, bool) {
	if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "multipart/") {
		return "", false
	}
	if _, params, err := mime.ParseMediaType(contentType); err == nil && params["boundary"] != "" {
		return params["boundary"], true
	}
	m := boundaryPattern.FindStringSubmatch(contentType)
	if m == nil {
		return "", false
	}
	return m[2], true
}

// readReportParts walks the parts. The first part is the XML envelope and
// is checked for failure; the first base64 part is the report.
func readReportParts(op string, body []byte, boundary string) ([]byte, error) {
	mr := multipart.NewReader(bytes.NewReader(body), boundary)
	first := true
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, ErrNoReportContent
		}
		if err != nil {
			if isTruncation(err) {
				return nil, fmt.Errorf("%w: %s", ErrDisconnected, op)
			}
			return nil, fmt.Errorf("%w: %s: %w", ErrMalformedResponse, op, err)
		}

		data, err := io.ReadAll(part)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrMalformedResponse, op, err)
		}

		if isBase64Part(part.Header) {
			decoded, err := base64.StdEncoding.DecodeString(stripWhitespace(string(data)))
			if err != nil {
				return nil, fmt.Errorf("%w: %s report part: %w", ErrMalformedResponse, op, err)
			}
			return decoded, nil
		}
		if first {
			if err := decode(op, data, nil); err != nil {
				return nil, err
			}
			first = false
		}
	}
}

func isBase64Part(h textproto.MIMEHeader) bool {
	return strings.EqualFold(strings.TrimSpace(h.Get("Content-Transfer-Encoding")), "base64")
}

func stripWhitespace(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\r', '\n':
			return -1
		}
		return r
	}, s)
}
