package domain

import "strconv"

// Status is a two-digit Gemini response code.
type Status int

// Response status codes.
const (
	StatusInput          Status = 10
	StatusSensitiveInput Status = 11

	StatusSuccess Status = 20

	StatusRedirectTemporary Status = 30
	StatusRedirectPermanent Status = 31

	StatusTemporaryFailure  Status = 40
	StatusServerUnavailable Status = 41
	StatusCGIError          Status = 42
	StatusProxyError        Status = 43
	StatusSlowDown          Status = 44

	StatusPermanentFailure    Status = 50
	StatusNotFound            Status = 51
	StatusGone                Status = 52
	StatusProxyRequestRefused Status = 53
	StatusBadRequest          Status = 59

	StatusClientCertificateRequired Status = 60
	StatusCertificateNotAuthorized  Status = 61
	StatusCertificateNotValid       Status = 62
)

// Class groups statuses by their tens digit.
type Class int

// Status classes.
const (
	ClassUnknown     Class = 0
	ClassInput       Class = 1
	ClassSuccess     Class = 2
	ClassRedirect    Class = 3
	ClassTemporary   Class = 4
	ClassPermanent   Class = 5
	ClassCertificate Class = 6
)

var classNames = map[Class]string{
	ClassInput:       "input",
	ClassSuccess:     "success",
	ClassRedirect:    "redirect",
	ClassTemporary:   "temporary_failure",
	ClassPermanent:   "permanent_failure",
	ClassCertificate: "client_certificate",
}

// String returns a label usable in logs and metrics.
func (c Class) String() string {
	if name, ok := classNames[c]; ok {
		return name
	}
	return "unknown"
}

// defaultMeta holds the meta sent when a constructor is called without one.
var defaultMeta = map[Status]string{
	StatusInput:                     "Input required",
	StatusSensitiveInput:            "Sensitive input required",
	StatusTemporaryFailure:          "Temporary failure",
	StatusServerUnavailable:         "Server unavailable",
	StatusCGIError:                  "CGI error",
	StatusProxyError:                "Proxy error",
	StatusSlowDown:                  "Slow down",
	StatusPermanentFailure:          "Permanent failure",
	StatusNotFound:                  "Not found",
	StatusGone:                      "Gone",
	StatusProxyRequestRefused:       "Proxy request refused",
	StatusBadRequest:                "Bad request",
	StatusClientCertificateRequired: "Client certificate required",
	StatusCertificateNotAuthorized:  "Certificate not authorized",
	StatusCertificateNotValid:       "Certificate not valid",
}

// Class returns the status class, or ClassUnknown outside 10-69.
func (s Status) Class() Class {
	if s < 10 || s > 69 {
		return ClassUnknown
	}
	return Class(s / 10)
}

// IsSuccess reports whether s is in [20, 30).
func (s Status) IsSuccess() bool {
	return s.Class() == ClassSuccess
}

// Valid reports whether s is a two-digit code in a known class.
func (s Status) Valid() bool {
	return s.Class() != ClassUnknown
}

// DefaultMeta returns the standard meta line for s, or "" when the status has
// no fixed text (success, redirects).
func (s Status) DefaultMeta() string {
	return defaultMeta[s]
}

func (s Status) String() string {
	return strconv.Itoa(int(s))
}
