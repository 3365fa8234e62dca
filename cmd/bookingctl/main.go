// Command bookingctl drives the booking wizard against a running API and
// issues admin tokens for the studio dashboard.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	httpmiddleware "github.com/novellus/pilates-booking/internal/http/middleware"
	"github.com/novellus/pilates-booking/internal/schema"
	"github.com/novellus/pilates-booking/internal/wizard"
	"github.com/novellus/pilates-booking/internal/wizard/apiclient"
	"github.com/novellus/pilates-booking/pkg/logging"
)

const usage = `usage: bookingctl <command> [flags]

commands:
  book     walk the four booking steps from an answers file and create a payment intent
  confirm  confirm a booking after the card was charged
  get      print a booking
  token    sign an admin JWT`

// answers mirrors the four wizard steps.
type answers struct {
	TimePreferences schema.TimePreferences    `json:"timePreferences"`
	Contact         schema.ContactInfo        `json:"contact"`
	Medical         schema.MedicalDeclaration `json:"medical"`
	Payment         schema.PaymentConsent     `json:"payment"`
}

func main() {
	_ = godotenv.Load()
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "bookingctl:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errors.New(usage)
	}
	switch args[0] {
	case "book":
		return runBook(ctx, args[1:], out)
	case "confirm":
		return runConfirm(ctx, args[1:], out)
	case "get":
		return runGet(ctx, args[1:], out)
	case "token":
		return runToken(args[1:], out)
	default:
		return fmt.Errorf("unknown command %q\n%s", args[0], usage)
	}
}

func apiFlag(fs *flag.FlagSet) *string {
	return fs.String("api", envOr("BOOKING_API_URL", "http://localhost:8080"), "booking API base URL")
}

func newClient(baseURL string) *apiclient.Client {
	return apiclient.New(baseURL, logging.New("warn"))
}

func runBook(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("book", flag.ContinueOnError)
	api := apiFlag(fs)
	path := fs.String("answers", "", "JSON file with timePreferences, contact, medical and payment sections")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *path == "" {
		return errors.New("book: -answers is required")
	}

	raw, err := os.ReadFile(*path)
	if err != nil {
		return fmt.Errorf("book: read answers: %w", err)
	}
	var a answers
	if err := json.Unmarshal(raw, &a); err != nil {
		return fmt.Errorf("book: decode answers: %w", err)
	}

	w := wizard.New()
	for _, step := range []any{a.TimePreferences, a.Contact, a.Medical, a.Payment} {
		current := w.Step()
		if err := w.Advance(step); err != nil {
			return fmt.Errorf("book: %s: %w", current.Title(), err)
		}
		fmt.Fprintf(out, "%s ok\n", current.Title())
	}

	checkout, err := w.SubmitAndPay(ctx, newClient(*api))
	if err != nil {
		return fmt.Errorf("book: %w", err)
	}
	return writeJSON(out, checkout)
}

func runConfirm(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("confirm", flag.ContinueOnError)
	api := apiFlag(fs)
	bookingID := fs.Int64("booking", 0, "booking id")
	intentID := fs.String("intent", "", "Stripe payment intent id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *bookingID <= 0 || strings.TrimSpace(*intentID) == "" {
		return errors.New("confirm: -booking and -intent are required")
	}
	b, err := newClient(*api).ConfirmPayment(ctx, *bookingID, strings.TrimSpace(*intentID))
	if err != nil {
		return fmt.Errorf("confirm: %w", err)
	}
	return writeJSON(out, b)
}

func runGet(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("get", flag.ContinueOnError)
	api := apiFlag(fs)
	id := fs.Int64("id", 0, "booking id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id <= 0 {
		return errors.New("get: -id is required")
	}
	b, err := newClient(*api).GetBooking(ctx, *id)
	if err != nil {
		return fmt.Errorf("get: %w", err)
	}
	return writeJSON(out, b)
}

func runToken(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	secret := fs.String("secret", os.Getenv("ADMIN_JWT_SECRET"), "HMAC secret shared with the API")
	subject := fs.String("subject", "", "who the token is for")
	role := fs.String("role", httpmiddleware.RoleStaff, "owner or staff")
	ttl := fs.Duration("ttl", 12*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *subject == "" {
		return errors.New("token: -subject is required")
	}
	if *role != httpmiddleware.RoleOwner && *role != httpmiddleware.RoleStaff {
		return fmt.Errorf("token: unknown role %q", *role)
	}
	token, err := httpmiddleware.IssueAdminToken(*secret, *subject, *role, *ttl)
	if err != nil {
		return fmt.Errorf("token: %w", err)
	}
	_, err = fmt.Fprintln(out, token)
	return err
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
