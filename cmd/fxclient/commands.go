package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"fxstreampro/client/internal/app"
	catalogdomain "fxstreampro/client/internal/catalog/domain"
	regdomain "fxstreampro/client/internal/registration/domain"
	regservice "fxstreampro/client/internal/registration/service"
)

// usageError is a flag problem; run prints it and exits 2.
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return &usageError{msg: fmt.Sprintf("%s: %v", fs.Name(), err)}
	}
	return nil
}

// redirectHint turns a redirect carried by err into a next step for the CLI user.
func redirectHint(err error) string {
	var rerr *regservice.Error
	if errors.As(err, &rerr) && rerr.Redirect == regservice.LandingSignup {
		return "Run `fxclient signup` first."
	}
	return ""
}

func runSignup(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	fs := newFlagSet("signup")
	name := fs.String("name", "", "full name")
	email := fs.String("email", "", "email address")
	password := fs.String("password", "", "password")
	confirm := fs.String("confirm", "", "password confirmation")
	terms := fs.Bool("accept-terms", false, "agree to the Terms and Privacy Policy")
	phone := fs.String("phone", "", "contact number (extended signup)")
	address := fs.String("address", "", "postal address (extended signup)")
	nationalID := fs.String("aadhaar", "", "12-digit Aadhaar number (extended signup)")
	taxID := fs.String("pan", "", "10-character PAN (extended signup)")
	nationalIDImg := fs.String("aadhaar-img", "", "path to the Aadhaar card image (extended signup)")
	taxIDImg := fs.String("pan-img", "", "path to the PAN card image (extended signup)")
	if err := parse(fs, args); err != nil {
		return err
	}

	var (
		res *regservice.SubmitResult
		err error
	)
	switch a.Registration.Variant() {
	case regdomain.VariantExtended:
		var form regdomain.ExtendedForm
		for field, value := range map[string]string{
			regdomain.FieldName:            *name,
			regdomain.FieldEmail:           *email,
			regdomain.FieldPhone:           *phone,
			regdomain.FieldPassword:        *password,
			regdomain.FieldConfirmPassword: *confirm,
			regdomain.FieldNationalID:      *nationalID,
			regdomain.FieldTaxID:           *taxID,
			regdomain.FieldAddress:         *address,
		} {
			if err := form.SetField(field, value); err != nil {
				return err
			}
		}
		if form.NationalIDImage, err = readDocument(*nationalIDImg); err != nil {
			return err
		}
		if form.TaxIDImage, err = readDocument(*taxIDImg); err != nil {
			return err
		}
		form.TermsAccepted = *terms
		res, err = a.Registration.SubmitExtended(ctx, form)
	default:
		res, err = a.Registration.SubmitBasic(ctx, regdomain.BasicForm{
			Name:            *name,
			Email:           *email,
			Password:        *password,
			ConfirmPassword: *confirm,
			TermsAccepted:   *terms,
		})
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(out, res.Message)
	fmt.Fprintf(out, "An OTP was sent to %s. Run `fxclient verify -otp <code>`.\n", res.Email)
	return nil
}

// readDocument loads an identity-document image. An empty path yields nil so form validation
// reports the missing image.
func readDocument(path string) (*regdomain.Document, error) {
	if path == "" {
		return nil, nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return &regdomain.Document{Filename: filepath.Base(path), Content: content}, nil
}

func runVerify(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	fs := newFlagSet("verify")
	otp := fs.String("otp", "", "one-time password from the email")
	if err := parse(fs, args); err != nil {
		return err
	}
	res, err := a.Registration.VerifyOTP(ctx, *otp)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, res.Message)
	if res.Landing == regservice.LandingAdmin {
		fmt.Fprintln(out, "Signed in as admin.")
	} else {
		fmt.Fprintln(out, "Run `fxclient batches` to browse courses.")
	}
	return nil
}

func runBatches(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	fs := newFlagSet("batches")
	search := fs.String("search", "", "match name or description")
	language := fs.String("language", "", "English, Hindi or Marathi")
	mode := fs.String("mode", "", "online or offline")
	if err := parse(fs, args); err != nil {
		return err
	}
	filter := catalogdomain.Filter{Search: *search}
	if *language != "" {
		l, ok := catalogdomain.ParseLanguage(*language)
		if !ok {
			return &usageError{msg: fmt.Sprintf("batches: unknown language %q", *language)}
		}
		filter.Language = l
	}
	if *mode != "" {
		m, ok := catalogdomain.ParseMode(*mode)
		if !ok {
			return &usageError{msg: fmt.Sprintf("batches: unknown mode %q", *mode)}
		}
		filter.Mode = m
	}

	dash, err := a.Catalog.LoadDashboard(ctx, filter)
	if err != nil {
		return err
	}
	if len(dash.Enrolled) > 0 {
		fmt.Fprintln(out, "My Enrolled Courses")
		printBatches(out, a, dash.Enrolled)
		fmt.Fprintln(out)
	}
	fmt.Fprintln(out, "All Available Courses")
	printBatches(out, a, dash.Filtered)
	return nil
}

func printBatches(out io.Writer, a *app.App, batches []catalogdomain.Batch) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tMODE\tLANGUAGE\tPRICE\tSTART\tSTATUS")
	for _, b := range batches {
		price, start, status := "-", "-", "Enroll Now"
		if b.Price != nil {
			price = b.Price.Display()
		}
		if !b.StartDate.IsZero() {
			start = b.StartDate.Format("02 Jan 2006")
		}
		if a.Enrollment.IsEnrolled(b.ID) {
			status = "Enrolled"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n", b.ID, b.Name, b.Mode, b.Language, price, start, status)
	}
	tw.Flush()
}

func runEnroll(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	fs := newFlagSet("enroll")
	batchID := fs.String("batch", "", "batch ID (see `fxclient batches`)")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *batchID == "" {
		return &usageError{msg: "enroll: -batch is required"}
	}

	name := *batchID
	if canEnroll(ctx, a, *batchID) {
		name = batchName(ctx, a, *batchID)
	}
	res, err := a.Enrollment.Enroll(ctx, *batchID, name)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, res.Message)
	return nil
}

// canEnroll reports whether Enroll would get as far as the request, so the catalog is only
// fetched for attempts that will be made.
func canEnroll(ctx context.Context, a *app.App, batchID string) bool {
	if _, ok := a.Session.UserID(); !ok {
		return false
	}
	if _, ok := a.Session.Token(ctx); !ok {
		return false
	}
	return a.Enrollment.Enabled(batchID)
}

// batchName looks batchID up in the public catalog, falling back to the ID.
func batchName(ctx context.Context, a *app.App, batchID string) string {
	name := batchID
	if batches, err := a.Catalog.ListPublic(ctx); err == nil {
		for _, b := range batches {
			if b.ID == batchID {
				name = b.Name
				break
			}
		}
	}
	return name
}

func runWhoami(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	s, ok := a.Session.Current()
	if !ok {
		if id, known := a.Session.UserID(); known {
			fmt.Fprintf(out, "Session for %s has expired. Please log in again.\n", id)
			return nil
		}
		fmt.Fprintln(out, "Not signed in.")
		return nil
	}
	p := a.Session.Profile()
	name, email := "", ""
	if p != nil {
		name, email = p.FullName, p.Email
	}
	fmt.Fprintf(out, "User:     %s\n", s.UserID)
	if name != "" {
		fmt.Fprintf(out, "Name:     %s\n", name)
	}
	if email != "" {
		fmt.Fprintf(out, "Email:    %s\n", email)
	}
	fmt.Fprintf(out, "Role:     %s\n", s.Role)
	if !s.ExpiresAt.IsZero() {
		fmt.Fprintf(out, "Expires:  %s\n", s.ExpiresAt.Local().Format("02 Jan 2006 15:04"))
	}
	fmt.Fprintf(out, "Enrolled: %d batch(es)\n", len(a.Session.EnrolledBatchIDs()))
	return nil
}

func runLogout(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	if err := a.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(out, "Signed out.")
	return nil
}

func runDoctor(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	rep := a.Health.Run(ctx)
	for _, r := range rep.Results {
		line := fmt.Sprintf("%-14s %s", r.Name, r.Status)
		if r.Err != nil {
			line += ": " + r.Err.Error()
		}
		fmt.Fprintln(out, line)
	}
	return rep.Err()
}
