package domain

import "fmt"

// MinPasswordLength applies to the basic variant only.
const MinPasswordLength = 6

// Validation messages shown to the user. Only the first violated rule is reported.
const (
	MsgFillAllFields    = "Please fill all fields"
	MsgPasswordMismatch = "Passwords do not match"
	MsgPasswordTooShort = "Password must be at least 6 characters"
	MsgTermsRequired    = "You must agree to the Terms and Privacy Policy."
)

// ValidationError reports the first rule a form breaks.
type ValidationError struct {
	Field   string // first offending field, when one applies
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Field)
}

// Document is an identity-document image to upload before registering.
type Document struct {
	Filename string
	Content  []byte
}

func (d *Document) missing() bool {
	return d == nil || len(d.Content) == 0
}

// BasicForm is the basic signup variant.
type BasicForm struct {
	Name            string
	Email           string
	Password        string
	ConfirmPassword string
	TermsAccepted   bool
}

// Validate checks, in order: required fields, password confirmation, password length, terms.
func (f *BasicForm) Validate() error {
	for _, fld := range []struct{ name, value string }{
		{"name", f.Name},
		{"email", f.Email},
		{"password", f.Password},
		{"confirmPassword", f.ConfirmPassword},
	} {
		if blank(fld.value) {
			return &ValidationError{Field: fld.name, Message: MsgFillAllFields}
		}
	}
	if f.Password != f.ConfirmPassword {
		return &ValidationError{Field: "confirmPassword", Message: MsgPasswordMismatch}
	}
	if len([]rune(f.Password)) < MinPasswordLength {
		return &ValidationError{Field: "password", Message: MsgPasswordTooShort}
	}
	if !f.TermsAccepted {
		return &ValidationError{Message: MsgTermsRequired}
	}
	return nil
}

// ExtendedForm is the KYC signup variant. Set fields through SetField so keystroke
// normalisation is applied as the user types.
type ExtendedForm struct {
	Name            string
	Email           string
	Phone           string
	Password        string
	ConfirmPassword string
	NationalID      string // formatted XXXX-XXXX-XXXX
	TaxID           string
	Address         string
	NationalIDImage *Document
	TaxIDImage      *Document
	TermsAccepted   bool
}

// Field names accepted by SetField.
const (
	FieldName            = "name"
	FieldEmail           = "email"
	FieldPhone           = "contact"
	FieldPassword        = "password"
	FieldConfirmPassword = "confirmPassword"
	FieldNationalID      = "aadharCardNo"
	FieldTaxID           = "panCardNo"
	FieldAddress         = "address"
)

// SetField applies one keystroke-level update, normalising phone, national ID and tax ID.
func (f *ExtendedForm) SetField(name, value string) error {
	switch name {
	case FieldName:
		f.Name = value
	case FieldEmail:
		f.Email = value
	case FieldPhone:
		f.Phone = FormatPhone(value)
	case FieldPassword:
		f.Password = value
	case FieldConfirmPassword:
		f.ConfirmPassword = value
	case FieldNationalID:
		f.NationalID = FormatNationalID(value)
	case FieldTaxID:
		f.TaxID = FormatTaxID(value)
	case FieldAddress:
		f.Address = value
	default:
		return fmt.Errorf("unknown signup field %q", name)
	}
	return nil
}

// Validate checks, in order: required fields and both document images, password confirmation, terms.
// The extended variant has no minimum password length.
func (f *ExtendedForm) Validate() error {
	for _, fld := range []struct{ name, value string }{
		{FieldName, f.Name},
		{FieldEmail, f.Email},
		{FieldPhone, f.Phone},
		{FieldPassword, f.Password},
		{FieldConfirmPassword, f.ConfirmPassword},
		{FieldNationalID, f.NationalID},
		{FieldTaxID, f.TaxID},
		{FieldAddress, f.Address},
	} {
		if blank(fld.value) {
			return &ValidationError{Field: fld.name, Message: MsgFillAllFields}
		}
	}
	if f.NationalIDImage.missing() {
		return &ValidationError{Field: "aadharImg", Message: MsgFillAllFields}
	}
	if f.TaxIDImage.missing() {
		return &ValidationError{Field: "panImg", Message: MsgFillAllFields}
	}
	if f.Password != f.ConfirmPassword {
		return &ValidationError{Field: FieldConfirmPassword, Message: MsgPasswordMismatch}
	}
	if !f.TermsAccepted {
		return &ValidationError{Message: MsgTermsRequired}
	}
	return nil
}
