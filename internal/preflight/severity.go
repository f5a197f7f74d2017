package preflight

// Severity classifies the outcome of one check.
type Severity int

const (
	SeverityOK Severity = iota
	// SeverityInfo reports a fact without judging it.
	SeverityInfo
	SeverityWarn
	SeverityFail
)

// String returns the status label rendered next to the check.
func (s Severity) String() string {
	switch s {
	case SeverityOK:
		return "OK"
	case SeverityInfo:
		return "INFO"
	case SeverityWarn:
		return "WARN"
	case SeverityFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// Counts reports whether the severity contributes to the failure count.
func (s Severity) Counts() bool {
	return s == SeverityFail
}

// Check is the outcome of one readiness condition.
type Check struct {
	Category string
	Name     string
	Severity Severity
	Detail   string
}

// Categories used by the built-in checks.
const (
	CategoryModule      = "capability module"
	CategoryModelAsset  = "model asset"
	CategoryConfig      = "configuration"
	CategoryEnvironment = "environment variable"
	CategoryModelCache  = "model cache"
	CategoryPath        = "filesystem path"
	CategoryHardware    = "hardware"
	CategoryBinary      = "external binary"
)

func ok(category, name, detail string) Check {
	return Check{Category: category, Name: name, Severity: SeverityOK, Detail: detail}
}

func info(category, name, detail string) Check {
	return Check{Category: category, Name: name, Severity: SeverityInfo, Detail: detail}
}

func warn(category, name, detail string) Check {
	return Check{Category: category, Name: name, Severity: SeverityWarn, Detail: detail}
}

func fail(category, name, detail string) Check {
	return Check{Category: category, Name: name, Severity: SeverityFail, Detail: detail}
}
