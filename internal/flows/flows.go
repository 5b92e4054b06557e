// Package flows holds the concrete dialogue workflows of the inventory
// assistant and the process-wide handlers for parked act delivery.
package flows

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"inventory-assistant-be/internal/pkg/logger"
	"inventory-assistant-be/pkg/acts"
	"inventory-assistant-be/pkg/dialog"
	"inventory-assistant-be/pkg/dialog/action"
	"inventory-assistant-be/pkg/dialog/router"
	"inventory-assistant-be/pkg/dialog/workflow"
	"inventory-assistant-be/pkg/docgen"
	"inventory-assistant-be/pkg/events"
	"inventory-assistant-be/pkg/inventory"
	"inventory-assistant-be/pkg/records"
	"inventory-assistant-be/pkg/store"
	"inventory-assistant-be/pkg/suggest"
	"inventory-assistant-be/pkg/validation"
)

type DocumentGenerator interface {
	Generate(ctx context.Context, spec docgen.ActSpec) (docgen.Document, error)
}

type Config struct {
	// MaxPhotos caps the items collected by one transfer.
	MaxPhotos int
	Databases []string
	DefaultDB string
}

type Deps struct {
	Sessions   store.Store
	Datastore  inventory.Datastore
	Entities   *inventory.EntityCache
	Recognizer inventory.Recognizer
	Records    records.Store
	Selections records.Selections
	Documents  DocumentGenerator
	Acts       *acts.Coordinator
	Remover    acts.FileRemover
	// Events is optional.
	Events events.Publisher
	Logger logger.ILogger
	Config Config
}

type Flows struct {
	Deps
}

func New(d Deps) *Flows {
	if d.Config.MaxPhotos <= 0 {
		d.Config.MaxPhotos = 10
	}
	if d.Config.DefaultDB == "" && len(d.Config.Databases) > 0 {
		d.Config.DefaultDB = d.Config.Databases[0]
	}
	return &Flows{Deps: d}
}

// Definitions returns every workflow in entry-matching order.
func (f *Flows) Definitions() []*workflow.Definition {
	return []*workflow.Definition{
		f.searchWorkflow(),
		f.employeeWorkflow(),
		f.unfoundWorkflow(),
		f.transferWorkflow(),
		f.workWorkflow(),
		f.databaseWorkflow(),
	}
}

// Register adds every workflow to reg.
func (f *Flows) Register(reg *workflow.Registry) error {
	for _, def := range f.Definitions() {
		if err := reg.Register(def); err != nil {
			return err
		}
	}
	return nil
}

var _ router.PendingReleaser = (*Flows)(nil)

// database returns the user's selected database, falling back to the default
// when the selection is unknown or no longer configured.
func (f *Flows) database(userID string) string {
	if f.Selections != nil {
		if db, ok := f.Selections.Selected(userID); ok && f.knownDatabase(db) {
			return db
		}
	}
	return f.Config.DefaultDB
}

func (f *Flows) knownDatabase(db string) bool {
	for _, d := range f.Config.Databases {
		if d == db {
			return true
		}
	}
	return false
}

func (f *Flows) emit(ctx context.Context, ev events.Event) {
	if f.Events == nil {
		return
	}
	if err := f.Events.Publish(ctx, ev); err != nil {
		f.Logger.Warn("Flows", "Failed to publish domain event", map[string]interface{}{
			"type":  ev.EventType(),
			"error": err.Error(),
		})
	}
}

// Predicates

func onEntry(command, menuLabel string) workflow.Predicate {
	return func(ev *dialog.Event) bool {
		return ev.IsCommand(command) || ev.TextIs(menuLabel)
	}
}

func onCommand(name string) workflow.Predicate {
	return func(ev *dialog.Event) bool { return ev.IsCommand(name) }
}

func onAction(k action.Kind) workflow.Predicate {
	return func(ev *dialog.Event) bool { return ev.IsAction(k) }
}

func onFreeText(ev *dialog.Event) bool {
	return ev.IsFreeText()
}

func onPhoto(ev *dialog.Event) bool {
	return ev.IsPhoto()
}

func onSerialInput(ev *dialog.Event) bool {
	return ev.IsFreeText() || ev.IsPhoto()
}

// Shared transitions

func backToMain() workflow.Transition {
	return workflow.Transition{
		Name:  "back_to_main",
		Match: onAction(action.BackToMain),
		Handle: func(context.Context, *workflow.Request) (workflow.Outcome, error) {
			return workflow.Finish(mainMenu()), nil
		},
	}
}

func mainMenu() dialog.Reply {
	return dialog.Text("🏠 Main menu").WithMainMenu()
}

// Serial input

var errUnreadable = errors.New("no serial in photo")

// readSerial turns a typed or photographed serial into a validated value.
// The returned reply explains a failure and the caller re-prompts with it.
func (f *Flows) readSerial(ctx context.Context, ev *dialog.Event) (string, *dialog.Reply) {
	if ev.IsPhoto() {
		serial, err := f.recognize(ctx, ev)
		if err != nil {
			r := dialog.Text("📷 Could not read a serial number from the photo. Try another photo or type the serial number.")
			if !errors.Is(err, errUnreadable) {
				r = dialog.Text("⚠️ Text recognition is unavailable right now. Please type the serial number.")
			}
			return "", &r
		}
		return serial, nil
	}

	serial, err := validation.ValidateSerial(ev.Text)
	if err != nil {
		r := dialog.Text("❌ Invalid serial number. Use letters, digits, spaces and - _ . : (up to 50 characters).")
		return "", &r
	}
	return serial, nil
}

func (f *Flows) recognize(ctx context.Context, ev *dialog.Event) (string, error) {
	if f.Remover != nil {
		defer f.Remover.Remove(ctx, ev.PhotoPath)
	}
	if f.Recognizer == nil {
		return "", fmt.Errorf("no recognizer configured")
	}
	serial, err := f.Recognizer.ExtractSerial(ctx, ev.PhotoPath)
	if errors.Is(err, inventory.ErrNoSerial) {
		return "", errUnreadable
	}
	if err != nil {
		f.Logger.Error("Flows", "Text recognition failed", map[string]interface{}{
			"user_id": ev.UserID,
			"error":   err,
		})
		return "", err
	}
	if !validation.LooksLikeSerial(serial) {
		return "", errUnreadable
	}
	return serial, nil
}

// Rendering

func equipmentCard(eq *inventory.Equipment, serial string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🔢 Serial: %s\n", serial)
	line := func(label, v string) {
		if strings.TrimSpace(v) != "" {
			fmt.Fprintf(&sb, "%s: %s\n", label, v)
		}
	}
	line("🏷 Inventory No.", eq.InventoryNumber)
	line("📦 Type", eq.Type)
	line("💻 Model", eq.Model)
	line("👤 Employee", eq.Owner())
	line("🏢 Department", eq.Department)
	line("📍 Branch", eq.Branch)
	line("🚪 Location", eq.Location)
	line("📊 Status", eq.Status)
	line("🌐 IP", eq.IPAddress)
	line("📝 Description", eq.Description)
	return strings.TrimRight(sb.String(), "\n")
}

// optionRows renders one button per label with an index argument.
func optionRows(labels []string, k action.Kind) [][]dialog.Button {
	rows := make([][]dialog.Button, 0, len(labels))
	for i, l := range labels {
		rows = append(rows, dialog.Row(dialog.Btn(l, k, action.IndexArg(i))))
	}
	return rows
}

// valueRows renders one button per value with the value itself as argument.
func valueRows(values []string, k action.Kind) [][]dialog.Button {
	rows := make([][]dialog.Button, 0, len(values))
	for _, v := range values {
		rows = append(rows, dialog.Row(dialog.Btn(v, k, v)))
	}
	return rows
}

// keepTypedRow lets the user keep free text that only resembles catalogue
// entries, so a new value is never blocked by its neighbours.
func keepTypedRow(typed string, k action.Kind, arg string) []dialog.Button {
	return dialog.Row(dialog.Btn("✏️ Keep \""+typed+"\"", k, arg))
}

func candidateValues(cands []suggest.Candidate) []string {
	out := make([]string, 0, len(cands))
	for _, c := range cands {
		out = append(out, c.Value)
	}
	return out
}

// offered resolves an index action against the labels shown last.
func offered(ev *dialog.Event, list []string) (string, bool) {
	i, ok := ev.Action.Index()
	if !ok || i >= len(list) {
		return "", false
	}
	return list[i], true
}

func staleButton() dialog.Reply {
	return dialog.Text("⌛ That option is no longer available. Please choose again.")
}
