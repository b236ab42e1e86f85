package response

// TextContentType is used for every status message body
const TextContentType = "text/plain"

// Response is built by the handler and consumed once by a Writer
type Response struct {
	Status      StatusCode
	ContentType string
	Body        []byte

	// ContentLength overrides len(Body) when >= 0. HEAD uses it to report
	// the real file size without carrying the bytes.
	ContentLength int64

	// Challenge, when set, selects the minimal 401 serialization with a
	// WWW-Authenticate header and no Content-Type.
	Challenge string
}

// Length returns the value sent in Content-Length
func (r *Response) Length() int64 {
	if !r.Status.AllowsBody() {
		return 0
	}
	if r.ContentLength >= 0 {
		return r.ContentLength
	}
	return int64(len(r.Body))
}

// Text builds a text/plain response carrying message
func Text(code StatusCode, message string) *Response {
	return &Response{
		Status:        code,
		ContentType:   TextContentType,
		Body:          []byte(message),
		ContentLength: -1,
	}
}

// Bytes builds a response with arbitrary content
func Bytes(code StatusCode, contentType string, data []byte) *Response {
	return &Response{
		Status:        code,
		ContentType:   contentType,
		Body:          data,
		ContentLength: -1,
	}
}

// Sized builds a bodiless response that still reports size as its
// Content-Length
func Sized(code StatusCode, contentType string, size int64) *Response {
	return &Response{
		Status:        code,
		ContentType:   contentType,
		ContentLength: size,
	}
}

// NoContent builds a 204 response
func NoContent() *Response {
	return Text(StatusNoContent, "")
}

// Unauthorized builds the 401 challenge response
func Unauthorized(challenge string) *Response {
	return &Response{
		Status:        StatusUnauthorized,
		ContentLength: -1,
		Challenge:     challenge,
	}
}
