// Package upload decodes membership submissions from multipart, URL-encoded
// or JSON request bodies, enforcing the proof image limits.
package upload

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/ignite/membership-api/internal/config"
	"github.com/ignite/membership-api/internal/membership"
)

// FileField is the only multipart field that may carry a file.
const FileField = "giftCardImage"

// maxFieldBytes bounds the non-file part of a request body.
const maxFieldBytes = 1 << 20

// Kind classifies an upload failure.
type Kind int

const (
	// KindOther covers malformed bodies and unexpected file fields.
	KindOther Kind = iota
	// KindTooLarge means the image exceeded the size limit.
	KindTooLarge
	// KindUnsupportedType means the image content type is not allowed.
	KindUnsupportedType
)

// Error is returned for every rejected upload.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message()
	}
	return fmt.Sprintf("%s: %v", e.Message(), e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Message is the client-facing description of the failure.
func (e *Error) Message() string {
	switch e.Kind {
	case KindTooLarge:
		return "Image file too large (max 5MB)"
	case KindUnsupportedType:
		return "Only JPEG, PNG, or GIF images are allowed"
	default:
		return "File upload error"
	}
}

func uploadErr(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// Parser extracts a membership.Submission from an HTTP request.
type Parser struct {
	maxFileBytes int64
	allowedTypes map[string]bool
}

// NewParser creates a Parser from the upload config.
func NewParser(cfg config.UploadConfig) *Parser {
	allowed := make(map[string]bool, len(cfg.AllowedTypes))
	for _, t := range cfg.AllowedTypes {
		allowed[strings.ToLower(strings.TrimSpace(t))] = true
	}
	return &Parser{maxFileBytes: cfg.MaxFileBytes, allowedTypes: allowed}
}

// Parse decodes the request body according to its Content-Type. Missing
// fields are left empty; validation happens later.
func (p *Parser) Parse(w http.ResponseWriter, r *http.Request) (*membership.Submission, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		mediaType = ""
	}

	switch mediaType {
	case "multipart/form-data":
		r.Body = http.MaxBytesReader(w, r.Body, p.maxFileBytes+maxFieldBytes)
		return p.parseMultipart(r)
	case "application/json":
		r.Body = http.MaxBytesReader(w, r.Body, maxFieldBytes)
		return parseJSON(r.Body)
	case "application/x-www-form-urlencoded":
		r.Body = http.MaxBytesReader(w, r.Body, maxFieldBytes)
		if err := r.ParseForm(); err != nil {
			return nil, uploadErr(KindOther, "parse form: %w", err)
		}
		return fromValues(r.PostForm), nil
	default:
		// Bodies without a recognised type carry no fields.
		return &membership.Submission{}, nil
	}
}

func (p *Parser) parseMultipart(r *http.Request) (*membership.Submission, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, uploadErr(KindOther, "multipart reader: %w", err)
	}

	values := url.Values{}
	var image *membership.ProofImage
	var fieldBytes int64

	for {
		part, err := mr.NextPart()
		// A truncated body surfaces as a wrapped EOF; only a bare EOF ends the form.
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, uploadErr(KindOther, "next part: %w", err)
		}

		if part.FileName() == "" {
			data, err := io.ReadAll(io.LimitReader(part, maxFieldBytes-fieldBytes+1))
			part.Close()
			if err != nil {
				return nil, uploadErr(KindOther, "read field %q: %w", part.FormName(), err)
			}
			fieldBytes += int64(len(data))
			if fieldBytes > maxFieldBytes {
				return nil, uploadErr(KindOther, "form fields exceed %d bytes", maxFieldBytes)
			}
			values.Add(part.FormName(), string(data))
			continue
		}

		if part.FormName() != FileField {
			part.Close()
			return nil, uploadErr(KindOther, "unexpected file field %q", part.FormName())
		}
		if image != nil {
			part.Close()
			return nil, uploadErr(KindOther, "more than one file in %q", FileField)
		}
		image, err = p.readImage(part)
		part.Close()
		if err != nil {
			return nil, err
		}
	}

	sub := fromValues(values)
	sub.ProofImage = image
	return sub, nil
}

func (p *Parser) readImage(part *multipart.Part) (*membership.ProofImage, error) {
	contentType := strings.ToLower(part.Header.Get("Content-Type"))
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		contentType = mt
	}
	if !p.allowedTypes[contentType] {
		return nil, uploadErr(KindUnsupportedType, "content type %q", contentType)
	}

	data, err := io.ReadAll(io.LimitReader(part, p.maxFileBytes+1))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, uploadErr(KindTooLarge, "request body over %d bytes", maxErr.Limit)
		}
		return nil, uploadErr(KindOther, "read file: %w", err)
	}
	if int64(len(data)) > p.maxFileBytes {
		return nil, uploadErr(KindTooLarge, "file over %d bytes", p.maxFileBytes)
	}

	return &membership.ProofImage{
		Filename:    part.FileName(),
		ContentType: contentType,
		Content:     data,
	}, nil
}

// parseJSON accepts scalar values of any JSON type, so a numeric PIN such as
// 4321 reaches validation as "4321". Objects and arrays count as absent.
func parseJSON(body io.Reader) (*membership.Submission, error) {
	dec := json.NewDecoder(body)
	dec.UseNumber()

	var raw map[string]interface{}
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return &membership.Submission{}, nil
		}
		return nil, uploadErr(KindOther, "decode json: %w", err)
	}

	values := url.Values{}
	for k, v := range raw {
		switch val := v.(type) {
		case string:
			values.Set(k, val)
		case json.Number:
			values.Set(k, val.String())
		case bool:
			values.Set(k, strconv.FormatBool(val))
		}
	}
	return fromValues(values), nil
}

func fromValues(v url.Values) *membership.Submission {
	return &membership.Submission{
		Email:         v.Get("email"),
		Plan:          v.Get("plan"),
		PaymentMethod: v.Get("paymentMethod"),
		TransactionID: v.Get("transactionId"),
		GiftCardPIN:   v.Get("giftCardPin"),
	}
}
