package response

// StatusCode represents HTTP status codes
type StatusCode int

const (
	StatusOK                      StatusCode = 200
	StatusCreated                 StatusCode = 201
	StatusNoContent               StatusCode = 204
	StatusBadRequest              StatusCode = 400
	StatusUnauthorized            StatusCode = 401
	StatusForbidden               StatusCode = 403
	StatusNotFound                StatusCode = 404
	StatusMethodNotAllowed        StatusCode = 405
	StatusInternalServerError     StatusCode = 500
	StatusHTTPVersionNotSupported StatusCode = 505
)

// statusText maps status codes to reason phrases
var statusText = map[StatusCode]string{
	StatusOK:                      "OK",
	StatusCreated:                 "Created",
	StatusNoContent:               "No Content",
	StatusBadRequest:              "Bad Request",
	StatusUnauthorized:            "Unauthorized",
	StatusForbidden:               "Forbidden",
	StatusNotFound:                "Not Found",
	StatusMethodNotAllowed:        "Method Not Allowed",
	StatusInternalServerError:     "Internal Server Error",
	StatusHTTPVersionNotSupported: "HTTP Version Not Supported",
}

// StatusText returns the reason phrase for a status code
func StatusText(code StatusCode) string {
	if text, ok := statusText[code]; ok {
		return text
	}
	return "Unknown"
}

// AllowsBody reports whether a response with this status may carry a body
func (code StatusCode) AllowsBody() bool {
	return code != StatusNoContent
}

func (code StatusCode) IsClientError() bool {
	return code >= 400 && code < 500
}

func (code StatusCode) IsServerError() bool {
	return code >= 500 && code < 600
}
