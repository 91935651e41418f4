package service

import "strings"

// RedactionMarker replaces PII-bearing argument values in logs and audit records.
const RedactionMarker = "[REDACTED]"

// piiArgs are argument names whose values identify a person.
var piiArgs = map[string]bool{
	"patientname":  true,
	"dentistname":  true,
	"dentistnames": true,
	"name":         true,
	"username":     true,
	"query":        true,
	"email":        true,
	"phone":        true,
}

// IsPIIArg reports whether an argument name carries personal data.
func IsPIIArg(name string) bool {
	return piiArgs[strings.ToLower(name)]
}

// RedactArgs returns a copy of args with PII values replaced by RedactionMarker.
func RedactArgs(args map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(args))
	for k, v := range args {
		if IsPIIArg(k) && v != nil {
			out[k] = RedactionMarker
			continue
		}
		out[k] = v
	}
	return out
}
