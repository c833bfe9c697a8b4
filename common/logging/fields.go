package logging

import "log/slog"

// Field names shared by every component so log queries stay stable.
const (
	FieldService     = "service"
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldIP          = "ip"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldStatus      = "status"
	FieldError       = "error"
	FieldAnomalyID   = "anomaly_id"
	FieldStream      = "stream"
	FieldEntryID     = "entry_id"
	FieldSubject     = "subject"
	FieldBytes       = "bytes"
	FieldSeverity    = "severity"
	FieldValidations = "validation_errors"
)

func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

func IP(ip string) slog.Attr {
	return slog.String(FieldIP, ip)
}

func Method(method string) slog.Attr {
	return slog.String(FieldMethod, method)
}

func Path(path string) slog.Attr {
	return slog.String(FieldPath, path)
}

func Status(code int) slog.Attr {
	return slog.Int(FieldStatus, code)
}

// Error returns an error attribute. A nil error renders as an empty string.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(FieldError, "")
	}
	return slog.String(FieldError, err.Error())
}

func AnomalyID(id int64) slog.Attr {
	return slog.Int64(FieldAnomalyID, id)
}

func Stream(name string) slog.Attr {
	return slog.String(FieldStream, name)
}

func EntryID(id string) slog.Attr {
	return slog.String(FieldEntryID, id)
}

func Subject(subject string) slog.Attr {
	return slog.String(FieldSubject, subject)
}

func Bytes(n int) slog.Attr {
	return slog.Int(FieldBytes, n)
}

func Severity(s string) slog.Attr {
	return slog.String(FieldSeverity, s)
}

// Validations returns the validation messages of a rejected candidate.
func Validations(msgs []string) slog.Attr {
	return slog.Any(FieldValidations, msgs)
}
