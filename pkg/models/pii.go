package models

// PIIDetectionType categorizes what kind of sensitive value a PIIDetection
// represents.
type PIIDetectionType string

const (
	PIITypeSSN        PIIDetectionType = "ssn"
	PIITypeEmail      PIIDetectionType = "email"
	PIITypePhone      PIIDetectionType = "phone"
	PIITypeCreditCard PIIDetectionType = "credit_card"
	PIITypeIPv4       PIIDetectionType = "ipv4"
	PIITypeDOB        PIIDetectionType = "dob"
	PIITypeAPIKey     PIIDetectionType = "api_key"
	PIITypeLongNumber PIIDetectionType = "long_number"
)

// PIIDetection is one match produced by the detector. Start/End are a
// half-open interval [Start, End) in the scanned string.
type PIIDetection struct {
	Type       PIIDetectionType `json:"type"`
	Value      string           `json:"value"`
	Start      int              `json:"start"`
	End        int              `json:"end"`
	Confidence float64          `json:"confidence"`
}
