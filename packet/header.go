package packet

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// Header returns a Packetizer for byte payloads using a header prefix similar
// to HTTP, in which mimeType describes the content encoding.
//
// Specifically, each message is sent in the format:
//
//	Content-Type: <mime-type>\r\n
//	Content-Length: <nbytes>\r\n
//	\r\n
//	<payload>
//
// The length (nbytes) is encoded as decimal digits. For example, given a
// mimeType value "application/json", the message "123\n" is transmitted as:
//
//	Content-Type: application/json\r\n
//	Content-Length: 4\r\n
//	\r\n
//	123\n
//
// If mimeType == "", the Content-Type header is omitted. On input, the
// content type is not checked and unknown header fields are ignored.
func Header(mimeType string) Headers { return Headers{MIMEType: mimeType} }

// StrictHeader returns a Header packetizer that also requires the content
// type of each inbound frame to equal mimeType. A frame with a missing or
// different content type is reported as a *ContentTypeMismatchError.
func StrictHeader(mimeType string) Headers { return Headers{MIMEType: mimeType, Strict: true} }

// LSP is a Header packetizer using the Language Server Protocol (LSP)
// base protocol framing, as described at
// https://microsoft.github.io/language-server-protocol
var LSP = Header(lspMIMEType)

const lspMIMEType = "application/vscode-jsonrpc; charset=utf-8"

// Headers is a Packetizer for header-framed payloads. Use Header or
// StrictHeader to construct values of this type.
type Headers struct {
	MIMEType string
	Strict   bool

	// Frames with payloads longer than this are rejected. If MaxSize ≤ 0,
	// DefaultMaxSize is used.
	MaxSize int
}

// maxHeaderBytes bounds the header block of an inbound frame.
const maxHeaderBytes = 64 << 10

// ContentTypeMismatchError is reported by Unpack for a StrictHeader
// packetizer when the content type of a frame does not match.
type ContentTypeMismatchError struct {
	Got, Want string
}

func (c *ContentTypeMismatchError) Error() string {
	if c.Got == "" {
		return "no content-type"
	}
	return fmt.Sprintf("invalid content-type: got %q, want %q", c.Got, c.Want)
}

// Unwrap reports that a mismatch is a malformed frame.
func (c *ContentTypeMismatchError) Unwrap() error { return ErrMalformed }

// Name implements part of the Packetizer interface.
func (h Headers) Name() string {
	if h.MIMEType == "" {
		return "header"
	} else if h.MIMEType == lspMIMEType && !h.Strict {
		return "lsp"
	}
	return "header:" + h.MIMEType
}

// Pack implements part of the Packetizer interface.
func (h Headers) Pack(buf, msg []byte) ([]byte, error) {
	if limit := maxSize(h.MaxSize); len(msg) > limit {
		return buf, fmt.Errorf("payload length %d exceeds %d: %w", len(msg), limit, ErrTooLarge)
	}
	if h.MIMEType != "" {
		buf = append(buf, "Content-Type: "...)
		buf = append(buf, h.MIMEType...)
		buf = append(buf, "\r\n"...)
	}
	buf = append(buf, "Content-Length: "...)
	buf = strconv.AppendInt(buf, int64(len(msg)), 10)
	buf = append(buf, "\r\n\r\n"...)
	return append(buf, msg...), nil
}

// Unpack implements part of the Packetizer interface.
func (h Headers) Unpack(data []byte) ([]byte, int, error) {
	p := make(map[string]string)
	pos := 0
	for {
		i := bytes.IndexByte(data[pos:], '\n')
		if i < 0 {
			if len(data) > maxHeaderBytes {
				return nil, 0, fmt.Errorf("%w: header block exceeds %d bytes", ErrMalformed, maxHeaderBytes)
			}
			return nil, 0, nil // incomplete header block
		}
		line := strings.TrimRight(string(data[pos:pos+i]), "\r")
		pos += i + 1
		if pos > maxHeaderBytes {
			return nil, 0, fmt.Errorf("%w: header block exceeds %d bytes", ErrMalformed, maxHeaderBytes)
		}
		if line == "" {
			break
		}
		key, val, ok := strings.Cut(line, ":")
		if !ok {
			return nil, 0, fmt.Errorf("%w: invalid header line %q", ErrMalformed, line)
		}
		p[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(val)
	}

	// Parse out the required content-length field. This implementation
	// ignores unknown header fields.
	clen, ok := p["content-length"]
	if !ok {
		return nil, 0, fmt.Errorf("%w: missing required content-length", ErrMalformed)
	}
	size, err := strconv.Atoi(clen)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: invalid content-length: %v", ErrMalformed, err)
	} else if size < 0 {
		return nil, 0, fmt.Errorf("%w: negative content-length", ErrMalformed)
	} else if limit := maxSize(h.MaxSize); size > limit {
		return nil, 0, fmt.Errorf("%w: content-length %d exceeds %d: %w", ErrMalformed, size, limit, ErrTooLarge)
	}
	if h.Strict {
		if ctype := p["content-type"]; ctype != h.MIMEType {
			return nil, 0, &ContentTypeMismatchError{Got: ctype, Want: h.MIMEType}
		}
	}

	end := pos + size
	if len(data) < end {
		return nil, 0, nil
	}
	return clone(data[pos:end]), end, nil
}
