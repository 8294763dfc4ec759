// Package storage signs Cloud Storage upload URLs for catalog assets.
// Product and category images are written by the admin surface through
// short-lived signed PUTs; reads go through the public CDN, so the client
// only signs uploads.
package storage

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

const (
	defaultSignedURLExpiry = 15 * time.Minute
	maxSignedURLExpiry     = time.Hour
)

var (
	errNoSigner           = errors.New("storage: signer is required")
	errNoUploadOptions    = errors.New("storage: upload options are required")
	errInvalidBucket      = errors.New("storage: bucket name is required")
	errInvalidObject      = errors.New("storage: object name is required")
	errMethodNotAllowed   = errors.New("storage: HTTP method not allowed for uploads")
	errContentTypeMissing = errors.New("storage: content type is required for uploads")
	errContentTypeDenied  = errors.New("storage: content type not allowed")
	errMD5Required        = errors.New("storage: content MD5 is required for uploads")
	errMD5Invalid         = errors.New("storage: content MD5 must be base64 encoded")
	errExpiryTooLong      = errors.New("storage: expiry exceeds permitted maximum")
)

// Client generates signed upload URLs backed by a Signer.
type Client struct {
	signer Signer
	scheme storage.SigningScheme
	now    func() time.Time
}

// ClientOption customises client behaviour.
type ClientOption func(*Client)

// WithSigningScheme overrides the signing scheme (defaults to V4).
func WithSigningScheme(scheme storage.SigningScheme) ClientOption {
	return func(c *Client) {
		if scheme != 0 {
			c.scheme = scheme
		}
	}
}

// WithClock injects a custom clock (useful for tests).
func WithClock(clock func() time.Time) ClientOption {
	return func(c *Client) {
		if clock != nil {
			c.now = clock
		}
	}
}

// NewClient constructs a signed URL client.
func NewClient(signer Signer, opts ...ClientOption) (*Client, error) {
	if signer == nil || strings.TrimSpace(signer.Email()) == "" {
		return nil, errNoSigner
	}

	client := &Client{
		signer: signer,
		scheme: storage.SigningSchemeV4,
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// SignedURLOptions capture configuration for an upload signed URL.
type SignedURLOptions struct {
	Upload *UploadOptions
}

// UploadOptions control upload validation. MaxSize and AllowedContentTypes
// become signed constraints the storage service enforces on the PUT itself.
type UploadOptions struct {
	Method              string
	ContentType         string
	ContentMD5          string
	RequireMD5          bool
	AllowedContentTypes []string
	MaxSize             int64
	ExpiresIn           time.Duration
}

// SignedURLResult describes the generated signed URL details. Headers lists
// the exact headers the uploader must send for the signature to match.
type SignedURLResult struct {
	URL       string
	Method    string
	ExpiresAt time.Time
	Headers   map[string]string
}

// SignedURL creates a signed upload URL for the given bucket and object.
func (c *Client) SignedURL(ctx context.Context, bucket, object string, opts SignedURLOptions) (SignedURLResult, error) {
	if c == nil {
		return SignedURLResult{}, errNoSigner
	}
	if ctx == nil {
		return SignedURLResult{}, errors.New("storage: context is required")
	}
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return SignedURLResult{}, errInvalidBucket
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return SignedURLResult{}, errInvalidObject
	}
	upload := opts.Upload
	if upload == nil {
		return SignedURLResult{}, errNoUploadOptions
	}

	method, err := normaliseUploadMethod(upload.Method)
	if err != nil {
		return SignedURLResult{}, err
	}

	contentType := strings.TrimSpace(upload.ContentType)
	if contentType == "" {
		return SignedURLResult{}, errContentTypeMissing
	}
	if len(upload.AllowedContentTypes) > 0 && !contentTypeAllowed(contentType, upload.AllowedContentTypes) {
		return SignedURLResult{}, errContentTypeDenied
	}

	expiry := upload.ExpiresIn
	if expiry <= 0 {
		expiry = defaultSignedURLExpiry
	}
	if expiry > maxSignedURLExpiry {
		return SignedURLResult{}, errExpiryTooLong
	}

	contentMD5 := strings.TrimSpace(upload.ContentMD5)
	if upload.RequireMD5 && contentMD5 == "" {
		return SignedURLResult{}, errMD5Required
	}
	if contentMD5 != "" {
		if _, err := base64.StdEncoding.DecodeString(contentMD5); err != nil {
			return SignedURLResult{}, errMD5Invalid
		}
	}

	headers := map[string]string{"Content-Type": contentType}
	if contentMD5 != "" {
		headers["Content-MD5"] = contentMD5
	}

	var extHeaders []string
	if upload.MaxSize > 0 {
		sizeRange := fmt.Sprintf("0,%d", upload.MaxSize)
		extHeaders = append(extHeaders, "x-goog-content-length-range:"+sizeRange)
		headers["x-goog-content-length-range"] = sizeRange
	}

	expiresAt := c.now().Add(expiry)
	urlOpts := storage.SignedURLOptions{
		GoogleAccessID: c.signer.Email(),
		Scheme:         c.scheme,
		Method:         method,
		ContentType:    contentType,
		MD5:            contentMD5,
		Headers:        extHeaders,
		Expires:        expiresAt,
		SignBytes: func(payload []byte) ([]byte, error) {
			return c.signer.SignBytes(ctx, payload)
		},
	}

	signedURL, err := storage.SignedURL(bucket, object, &urlOpts)
	if err != nil {
		return SignedURLResult{}, fmt.Errorf("storage: sign upload url: %w", err)
	}

	return SignedURLResult{
		URL:       signedURL,
		Method:    method,
		ExpiresAt: expiresAt,
		Headers:   headers,
	}, nil
}

const (
	httpMethodPut  = "PUT"
	httpMethodPost = "POST"
)

func normaliseUploadMethod(method string) (string, error) {
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = httpMethodPut
	}
	switch method {
	case httpMethodPut, httpMethodPost:
		return method, nil
	default:
		return "", errMethodNotAllowed
	}
}

func contentTypeAllowed(contentType string, allowed []string) bool {
	normalized := strings.ToLower(strings.TrimSpace(contentType))
	for _, candidate := range allowed {
		candidate = strings.ToLower(strings.TrimSpace(candidate))
		if candidate == "" {
			continue
		}
		if candidate == "*" {
			return true
		}
		if strings.HasSuffix(candidate, "/*") {
			if strings.HasPrefix(normalized, strings.TrimSuffix(candidate, "*")) {
				return true
			}
			continue
		}
		if normalized == candidate {
			return true
		}
	}
	return false
}
