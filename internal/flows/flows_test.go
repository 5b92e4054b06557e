package flows

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"inventory-assistant-be/internal/pkg/fileutil"
	"inventory-assistant-be/internal/pkg/logger"
	"inventory-assistant-be/internal/repository/jsonfile"
	"inventory-assistant-be/internal/repository/memory"
	"inventory-assistant-be/pkg/acts"
	"inventory-assistant-be/pkg/dialog"
	"inventory-assistant-be/pkg/dialog/router"
	"inventory-assistant-be/pkg/dialog/workflow"
	"inventory-assistant-be/pkg/docgen"
	"inventory-assistant-be/pkg/inventory"
	"inventory-assistant-be/pkg/inventory/inventorytest"
	"inventory-assistant-be/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	userID = "u1"
	chatID = "c1"
)

type sentMail struct {
	recipient string
	files     []acts.Attachment
}

type fakeMail struct {
	mu      sync.Mutex
	sent    []sentMail
	failAll bool
}

func (m *fakeMail) SendFiles(_ context.Context, recipient string, files []acts.Attachment, _, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return errors.New("smtp: connection refused")
	}
	m.sent = append(m.sent, sentMail{recipient: recipient, files: files})
	return nil
}

type harness struct {
	t        *testing.T
	router   *router.Router
	sessions *memory.SessionRepository
	ds       *inventorytest.Datastore
	records  *jsonfile.Repository
	mail     *fakeMail
	flows    *Flows
	actsDir  string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := logger.NewNopLogger()
	dir := t.TempDir()

	ds := inventorytest.NewDatastore()
	ds.Entities[inventory.KindEmployee] = []string{"Ivanov Ivan", "Petrov Petr", "Sidorova Anna"}
	ds.Entities[inventory.KindType] = []string{"Laptop", "Printer", "Monitor"}
	ds.Entities[inventory.KindModel] = []string{"Dell Latitude 5520", "HP LaserJet 1020"}
	ds.Entities[inventory.KindBranch] = []string{"Main office", "Warehouse"}
	ds.Entities[inventory.KindLocation] = []string{"101", "102"}
	ds.Entities[inventory.KindStatus] = []string{"In use", "Repair"}
	ds.Departments["Sidorova Anna"] = "Accounting"
	ds.Emails["Ivanov Ivan"] = "ivanov@example.com"
	ds.Add(inventory.Equipment{SerialNumber: "AB0C12", Type: "Laptop", Model: "Dell Latitude 5520", Employee: "Ivanov Ivan"})
	ds.Add(inventory.Equipment{SerialNumber: "SN-A1", Type: "Laptop", Model: "Dell Latitude 5520", Employee: "Ivanov Ivan"})
	ds.Add(inventory.Equipment{SerialNumber: "SN-A2", Type: "Monitor", Model: "Dell P2419", Employee: "Ivanov Ivan"})
	ds.Add(inventory.Equipment{SerialNumber: "SN-B1", Type: "Printer", Model: "HP LaserJet 1020", Employee: "Petrov Petr"})

	repo, err := jsonfile.NewRepository(filepath.Join(dir, "data"), log)
	require.NoError(t, err)

	actsDir := filepath.Join(dir, "acts")
	mail := &fakeMail{}
	sessions := memory.NewSessionRepository()
	remover := fileutil.NewRemover(fileutil.RetryConfig{MaxAttempts: 1}, log)

	f := New(Deps{
		Sessions:   sessions,
		Datastore:  ds,
		Entities:   inventory.NewEntityCache(ds, time.Minute),
		Recognizer: &inventorytest.Recognizer{Serials: map[string]string{}},
		Records:    repo,
		Selections: repo,
		Documents:  docgen.NewGenerator(actsDir),
		Acts:       acts.NewCoordinator(mail, ds, remover, log),
		Remover:    remover,
		Logger:     log,
		Config:     Config{Databases: []string{"ITINVENT", "TESTDB"}},
	})

	reg := workflow.NewRegistry()
	require.NoError(t, f.Register(reg))
	r := router.New(workflow.NewExecutor(reg, sessions, log), sessions, log,
		router.WithDefaults(f.Defaults()...),
		router.WithReleaser(f),
	)

	return &harness{t: t, router: r, sessions: sessions, ds: ds, records: repo, mail: mail, flows: f, actsDir: actsDir}
}

func (h *harness) cmd(name string) []dialog.Reply {
	return h.router.Handle(context.Background(), dialog.NewCommand(userID, chatID, name))
}

func (h *harness) text(s string) []dialog.Reply {
	return h.router.Handle(context.Background(), dialog.NewText(userID, chatID, s))
}

func (h *harness) tap(raw string) []dialog.Reply {
	return h.router.Handle(context.Background(), dialog.NewAction(userID, chatID, raw))
}

func (h *harness) photo(path string) []dialog.Reply {
	return h.router.Handle(context.Background(), dialog.NewPhoto(userID, chatID, path))
}

func (h *harness) session() *store.Session {
	s, _ := h.sessions.Get(userID)
	return s
}

func (h *harness) state() store.State {
	if s := h.session(); s != nil {
		return s.State
	}
	return ""
}

func (h *harness) actFiles() []string {
	entries, err := os.ReadDir(h.actsDir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	require.NoError(h.t, err)
	var out []string
	for _, e := range entries {
		out = append(out, e.Name())
	}
	return out
}

// button returns the payload of the first button whose label contains label.
func button(t *testing.T, replies []dialog.Reply, label string) string {
	t.Helper()
	for _, r := range replies {
		for _, row := range r.Buttons {
			for _, b := range row {
				if strings.Contains(b.Label, label) {
					return b.Action
				}
			}
		}
	}
	require.Failf(t, "button not found", "no button labelled %q", label)
	return ""
}

func allText(replies []dialog.Reply) string {
	parts := make([]string, 0, len(replies))
	for _, r := range replies {
		parts = append(parts, r.Text)
	}
	return strings.Join(parts, "\n")
}

func TestSearch_VariantMatch(t *testing.T) {
	h := newHarness(t)
	h.cmd("/search")
	require.Equal(t, searchAwaitSerial, h.state())

	out := allText(h.text("ABOC12"))

	assert.Contains(t, out, "Equipment found")
	assert.Contains(t, out, "Matched as AB0C12")
	assert.Contains(t, out, "Ivanov Ivan")
	assert.Equal(t, searchAwaitSerial, h.state())
}

func TestSearch_InvalidSerialReprompts(t *testing.T) {
	h := newHarness(t)
	h.cmd("search")

	out := allText(h.text("bad<serial>"))

	assert.Contains(t, out, "Invalid serial number")
	assert.Equal(t, searchAwaitSerial, h.state())
	assert.Empty(t, h.ds.Lookups)
}

func TestSearch_PhotoIsRecognisedAndRemoved(t *testing.T) {
	h := newHarness(t)
	photo := filepath.Join(t.TempDir(), "label.jpg")
	require.NoError(t, os.WriteFile(photo, []byte("jpeg"), 0o644))
	h.flows.Recognizer.(*inventorytest.Recognizer).Serials[photo] = "KX7F2093AB"
	h.ds.Add(inventory.Equipment{SerialNumber: "KX7F2093AB", Type: "Router", Employee: "Petrov Petr"})

	h.cmd("search")
	out := allText(h.photo(photo))

	assert.Contains(t, out, "KX7F2093AB")
	assert.NoFileExists(t, photo)
}

func TestSearch_NotFoundChainsIntoUnfound(t *testing.T) {
	h := newHarness(t)
	h.cmd("search")

	replies := h.text("ZZ999")
	require.Equal(t, searchNotFound, h.state())
	assert.Contains(t, allText(replies), "was not found")

	replies = h.tap(button(t, replies, "Register as unfound"))

	sess := h.session()
	require.NotNil(t, sess)
	assert.Equal(t, store.WorkflowUnfound, sess.Workflow())
	assert.Equal(t, store.State("unfound.employee"), sess.State)
	assert.Equal(t, "ZZ999", sess.Context.(*store.UnfoundContext).Form.Serial)
	assert.Contains(t, allText(replies), "ZZ999")
}

func TestEmployee_Pagination(t *testing.T) {
	h := newHarness(t)
	for _, sn := range []string{"E1", "E2", "E3", "E4", "E5"} {
		h.ds.Add(inventory.Equipment{SerialNumber: sn, Type: "Monitor", Employee: "Sidorova Anna"})
	}

	h.cmd("employee")
	replies := h.text("sidorova anna")
	require.Equal(t, employeeListing, h.state())
	assert.Contains(t, allText(replies), "5 item(s), page 1 of 2")

	replies = h.tap(button(t, replies, "Next"))
	assert.Contains(t, allText(replies), "page 2 of 2")

	// a stale Next on the last page stays on it
	replies = h.tap("emp_next")
	assert.Contains(t, allText(replies), "page 2 of 2")

	replies = h.tap(button(t, replies, "Back"))
	assert.Contains(t, allText(replies), "page 1 of 2")
}

func TestEmployee_SuggestionsThenPick(t *testing.T) {
	h := newHarness(t)
	h.cmd("employee")

	replies := h.text("Petr")
	require.Equal(t, employeePick, h.state())

	replies = h.tap(button(t, replies, "Petrov Petr"))

	assert.Equal(t, employeeListing, h.state())
	assert.Contains(t, allText(replies), "SN-B1")
}

func TestEmployee_NoMatchReprompts(t *testing.T) {
	h := newHarness(t)
	h.cmd("employee")

	replies := h.text("Nobody Here")

	assert.Contains(t, allText(replies), "No employees match")
	assert.Equal(t, employeeAwaitName, h.state())
	assert.Equal(t, "back_to_main", button(t, replies, "Main menu"))
}

// fillUnfound walks the intake form up to the confirmation screen.
func fillUnfound(t *testing.T, h *harness, serial string) []dialog.Reply {
	t.Helper()
	h.cmd("unfound")
	h.text(serial)
	replies := h.text("Ivanov Ivan")
	require.Equal(t, store.State("unfound.type"), h.state())
	h.tap(button(t, replies, "Laptop"))
	h.text("Dell Latitude 5520")
	require.Equal(t, store.State("unfound.description"), h.state())
	h.tap("skip_description")
	h.tap("skip_inventory")
	h.text("10.0.0.5")
	h.tap("skip_branch")
	h.tap("skip_location")
	replies = h.tap("skip_status")
	require.Equal(t, unfoundConfirm, h.state())
	return replies
}

func TestUnfound_FullPathSaves(t *testing.T) {
	h := newHarness(t)
	summary := fillUnfound(t, h, "NEW123")
	assert.Contains(t, allText(summary), "IP address: 10.0.0.5")

	out := allText(h.tap("confirm_unfound"))

	assert.Contains(t, out, "NEW123 saved")
	assert.Nil(t, h.session())

	saved, err := h.records.ListUnfound()
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, "Ivanov Ivan", saved[0].Employee)
	assert.Equal(t, "Laptop", saved[0].Type)
	assert.Equal(t, "10.0.0.5", saved[0].IP)
	assert.Equal(t, "ITINVENT", saved[0].DBName)
	assert.Empty(t, saved[0].Branch)
}

func TestUnfound_DuplicateSerial(t *testing.T) {
	h := newHarness(t)
	fillUnfound(t, h, "DUP1")
	h.tap("confirm_unfound")

	fillUnfound(t, h, "DUP1")
	out := allText(h.tap("confirm_unfound"))

	assert.Contains(t, out, "already registered")
	assert.Nil(t, h.session())
	saved, err := h.records.ListUnfound()
	require.NoError(t, err)
	assert.Len(t, saved, 1)
}

func TestUnfound_EditReturnsToSummary(t *testing.T) {
	h := newHarness(t)
	fillUnfound(t, h, "EDIT1")

	h.tap("edit_unfound")
	require.Equal(t, unfoundEdit, h.state())
	h.tap("edit_field:model")
	require.Equal(t, store.State("unfound.model"), h.state())

	replies := h.text("HP LaserJet 1020")

	assert.Equal(t, unfoundConfirm, h.state())
	assert.Contains(t, allText(replies), "Model: HP LaserJet 1020")
}

func TestUnfound_NewEmployee(t *testing.T) {
	h := newHarness(t)
	h.cmd("unfound")
	h.text("NEW5")

	replies := h.text("Zzyzx Person")
	require.Equal(t, store.State("unfound.employee"), h.state())

	h.tap(button(t, replies, "as a new employee"))

	assert.Equal(t, store.State("unfound.type"), h.state())
	assert.Equal(t, "Zzyzx Person", h.session().Context.(*store.UnfoundContext).Form.Employee)
}

func TestUnfound_SameTextTwiceKeepsTypedValue(t *testing.T) {
	h := newHarness(t)
	h.cmd("unfound")
	h.text("NEW6")
	h.text("Ivanov Ivan")

	replies := h.text("Lap")
	require.Equal(t, store.State("unfound.type"), h.state())
	assert.Contains(t, allText(replies), "Did you mean")

	h.text("lap")

	assert.Equal(t, store.State("unfound.model"), h.state())
	assert.Equal(t, "lap", h.session().Context.(*store.UnfoundContext).Form.Type)
}

func TestUnfound_InvalidIPReprompts(t *testing.T) {
	h := newHarness(t)
	h.cmd("unfound")
	h.text("NEW7")
	h.text("Ivanov Ivan")
	h.text("Printer")
	h.text("HP LaserJet 1020")
	h.tap("skip_description")
	h.tap("skip_inventory")

	out := allText(h.text("999.1.1.1"))

	assert.Contains(t, out, "Invalid ip address")
	assert.Equal(t, store.State("unfound.ip"), h.state())
}

// runTransfer moves serials to Sidorova Anna and stops at the delivery question.
func runTransfer(t *testing.T, h *harness, serials ...string) []dialog.Reply {
	t.Helper()
	h.cmd("transfer")
	for _, sn := range serials {
		h.text(sn)
	}
	h.cmd("/done")
	require.Equal(t, transferEmployee, h.state())
	replies := h.text("Sidorova Anna")
	require.Equal(t, transferBranch, h.state())
	replies = h.tap(button(t, replies, "Main office"))
	require.Equal(t, transferLocation, h.state())
	replies = h.tap(button(t, replies, "101"))
	require.Equal(t, transferConfirm, h.state())
	assert.Contains(t, allText(replies), "Accounting")
	return h.tap("confirm_transfer")
}

func TestTransfer_KeepTypedBranchAndLocation(t *testing.T) {
	h := newHarness(t)
	h.cmd("transfer")
	h.text("SN-A1")
	h.cmd("/done")
	h.text("Sidorova Anna")
	require.Equal(t, transferBranch, h.state())

	replies := h.text("Main")
	require.Equal(t, transferBranch, h.state())
	assert.Contains(t, allText(replies), "Did you mean")
	button(t, replies, "Main office")

	replies = h.tap(button(t, replies, `Keep "Main"`))
	require.Equal(t, transferLocation, h.state())

	replies = h.text("10")
	require.Equal(t, transferLocation, h.state())
	button(t, replies, "101")

	replies = h.tap(button(t, replies, `Keep "10"`))
	require.Equal(t, transferConfirm, h.state())
	out := allText(replies)
	assert.Contains(t, out, "Branch: Main\n")
	assert.Contains(t, out, "Location: 10")

	tc := h.session().Context.(*store.TransferContext)
	assert.Equal(t, "Main", tc.Branch)
	assert.Equal(t, "10", tc.Location)
}

func TestTransfer_ParksActsPerOwner(t *testing.T) {
	h := newHarness(t)

	replies := runTransfer(t, h, "SN-A1", "SN-A2", "SN-B1")

	out := allText(replies)
	assert.Contains(t, out, "3 device(s) transferred to Sidorova Anna")
	assert.Contains(t, out, "From Ivanov Ivan (2 units)")
	assert.Contains(t, out, "From Petrov Petr (1 units)")

	sess := h.session()
	require.NotNil(t, sess)
	assert.False(t, sess.Active())
	require.NotNil(t, sess.Pending)
	assert.Equal(t, store.PendingActDelivery, sess.Pending.Kind)
	require.Len(t, sess.Pending.Batch.Acts, 2)
	assert.Equal(t, "Ivanov Ivan", sess.Pending.Batch.Acts[0].OldEmployee)
	for _, p := range sess.Pending.Batch.Paths() {
		assert.FileExists(t, p)
	}

	require.Len(t, h.ds.Transfers, 1)
	assert.Equal(t, []string{"SN-A1", "SN-A2", "SN-B1"}, h.ds.Transfers[0].Serials)
	assert.Equal(t, "Accounting", h.ds.Transfers[0].Department)
}

func TestTransfer_RejectsDuplicatesAndUnknownSerials(t *testing.T) {
	h := newHarness(t)
	h.cmd("transfer")
	h.text("SN-A1")

	assert.Contains(t, allText(h.text("SN-A1")), "already in the list")
	assert.Contains(t, allText(h.text("NOPE-1")), "was not found")
	assert.Len(t, h.session().Context.(*store.TransferContext).Items, 1)
}

func TestTransfer_DoneNeedsItems(t *testing.T) {
	h := newHarness(t)
	h.cmd("transfer")

	out := allText(h.cmd("done"))

	assert.Contains(t, out, "at least one device")
	assert.Equal(t, transferPhotos, h.state())
}

func TestTransfer_DatastoreFailureDiscardsActs(t *testing.T) {
	h := newHarness(t)
	h.ds.TransferErr = errors.New("deadlock victim")

	out := allText(runTransfer(t, h, "SN-A1"))

	assert.Contains(t, out, "rejected the transfer")
	assert.Equal(t, transferConfirm, h.state())
	assert.Empty(t, h.actFiles())
}

func TestTransfer_NewBatchReleasesOldOne(t *testing.T) {
	h := newHarness(t)
	runTransfer(t, h, "SN-A1")
	first := h.session().Pending.Batch.Paths()

	runTransfer(t, h, "SN-B1")

	for _, p := range first {
		assert.NoFileExists(t, p)
	}
	batch := h.session().Pending.Batch
	require.Len(t, batch.Acts, 1)
	assert.Equal(t, "Petrov Petr", batch.Acts[0].OldEmployee)
	assert.Len(t, h.actFiles(), 1)
}

func TestDelivery_PerOwnerThenManual(t *testing.T) {
	h := newHarness(t)
	runTransfer(t, h, "SN-A1", "SN-B1")
	ivanovDoc := h.session().Pending.Batch.Acts[0].DocumentPath

	out := allText(h.tap("act:email_owners"))

	assert.Contains(t, out, "Sent: 1, not sent: 1")
	assert.Contains(t, out, "Petrov Petr (no email on file)")
	require.Len(t, h.mail.sent, 1)
	assert.Equal(t, "ivanov@example.com", h.mail.sent[0].recipient)
	assert.NoFileExists(t, ivanovDoc)

	sess := h.session()
	require.NotNil(t, sess.Pending)
	require.Len(t, sess.Pending.Batch.Acts, 1)
	assert.Equal(t, "Petrov Petr", sess.Pending.Batch.Acts[0].OldEmployee)

	h.tap("act:email_input")
	assert.Equal(t, store.PendingActEmail, h.session().Pending.Kind)

	out = allText(h.text("boss@example.com"))

	assert.Contains(t, out, "1 act(s) sent to boss@example.com")
	require.Len(t, h.mail.sent, 2)
	assert.Equal(t, "boss@example.com", h.mail.sent[1].recipient)
	assert.Nil(t, h.session())
	assert.Empty(t, h.actFiles())
}

func TestDelivery_InvalidEmailKeepsWaiting(t *testing.T) {
	h := newHarness(t)
	runTransfer(t, h, "SN-A1")
	h.tap("act:email")

	out := allText(h.text("not-an-email"))

	assert.Contains(t, out, "does not look like an email")
	assert.Equal(t, store.PendingActEmail, h.session().Pending.Kind)
	assert.Empty(t, h.mail.sent)
	assert.Len(t, h.actFiles(), 1)
}

func TestDelivery_TransportFailureKeepsActs(t *testing.T) {
	h := newHarness(t)
	runTransfer(t, h, "SN-A1")
	h.mail.failAll = true
	h.tap("act:email")

	out := allText(h.text("boss@example.com"))

	assert.Contains(t, out, "could not be sent")
	assert.Equal(t, store.PendingActDelivery, h.session().Pending.Kind)
	assert.Len(t, h.actFiles(), 1)
}

func TestDelivery_SkipRemovesDocuments(t *testing.T) {
	h := newHarness(t)
	runTransfer(t, h, "SN-A1", "SN-B1")

	out := allText(h.tap("act:skip"))

	assert.Contains(t, out, "skipped")
	assert.Nil(t, h.session())
	assert.Empty(t, h.actFiles())
	assert.Empty(t, h.mail.sent)
}

func TestDelivery_MissingDocumentsClearPending(t *testing.T) {
	h := newHarness(t)
	runTransfer(t, h, "SN-A1")
	for _, p := range h.session().Pending.Batch.Paths() {
		require.NoError(t, os.Remove(p))
	}

	out := allText(h.tap("act:email"))

	assert.Contains(t, out, "no longer available")
	assert.Nil(t, h.session())
}

func TestDelivery_IncompleteBatchRemovesRemainingDocuments(t *testing.T) {
	tests := []struct {
		name  string
		tap   string
		reply string
	}{
		{name: "skip", tap: "act:skip", reply: "skipped"},
		{name: "consolidated email", tap: "act:email", reply: "no longer available"},
		{name: "per owner email", tap: "act:email_owners", reply: "no longer available"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			runTransfer(t, h, "SN-A1", "SN-B1")
			paths := h.session().Pending.Batch.Paths()
			require.Len(t, paths, 2)
			require.NoError(t, os.Remove(paths[0]))

			out := allText(h.tap(tt.tap))

			assert.Contains(t, out, tt.reply)
			assert.Nil(t, h.session())
			assert.NoFileExists(t, paths[1])
			assert.Empty(t, h.actFiles())
			assert.Empty(t, h.mail.sent)
		})
	}
}

func TestDelivery_NothingPending(t *testing.T) {
	h := newHarness(t)

	out := allText(h.tap("act:skip"))

	assert.Contains(t, out, "no acts waiting")
}

func TestDelivery_InterruptsReleaseDocuments(t *testing.T) {
	for _, cmd := range []string{"cancel", "start"} {
		t.Run(cmd, func(t *testing.T) {
			h := newHarness(t)
			runTransfer(t, h, "SN-A1")
			require.Len(t, h.actFiles(), 1)

			h.cmd(cmd)

			assert.Nil(t, h.session())
			assert.Empty(t, h.actFiles())
		})
	}
}

func TestDelivery_OtherWorkflowsKeepParkedActs(t *testing.T) {
	h := newHarness(t)
	runTransfer(t, h, "SN-A1")

	h.text(dialog.MenuFind)
	require.Equal(t, searchAwaitSerial, h.state())
	h.tap("back_to_main")

	sess := h.session()
	require.NotNil(t, sess)
	assert.False(t, sess.Active())
	require.NotNil(t, sess.Pending)
	assert.Len(t, h.actFiles(), 1)

	// the parked batch is still deliverable
	h.tap("act:skip")
	assert.Empty(t, h.actFiles())
}

func TestWork_BatteryReplacement(t *testing.T) {
	h := newHarness(t)
	replies := h.cmd("work")
	require.Equal(t, workType, h.state())

	h.tap(button(t, replies, "battery"))
	require.Equal(t, workSerial, h.state())
	replies = h.text("SN-A1")
	require.Equal(t, workConfirm, h.state())
	assert.Contains(t, allText(replies), "Ivanov Ivan")

	out := allText(h.tap("confirm_work"))

	assert.Contains(t, out, "saved")
	assert.Nil(t, h.session())
	logged, err := h.records.ListWork("battery_replacement")
	require.NoError(t, err)
	require.Len(t, logged, 1)
	assert.Equal(t, "SN-A1", logged[0].Serial)
	assert.Equal(t, "Ivanov Ivan", logged[0].Employee)
}

func TestWork_ComponentReplacement(t *testing.T) {
	h := newHarness(t)
	h.tap("work:component_replacement")
	h.text("SN-A2")
	require.Equal(t, workComponent, h.state())

	h.tap("component:RAM")
	require.Equal(t, workConfirm, h.state())
	h.tap("confirm_work")

	logged, err := h.records.ListWork("component_replacement")
	require.NoError(t, err)
	require.Len(t, logged, 1)
	assert.Equal(t, "RAM", logged[0].Component)
}

func TestWork_Cartridge(t *testing.T) {
	h := newHarness(t)
	h.cmd("work")
	h.tap("work:cartridge")
	require.Equal(t, workBranch, h.state())

	h.tap("work_branch:Main office")
	require.Equal(t, workLocation, h.state())
	h.text("Room 5")
	require.Equal(t, workModel, h.state())
	replies := h.text("LaserJet")
	require.Equal(t, workModel, h.state())
	h.tap(button(t, replies, "HP LaserJet 1020"))
	require.Equal(t, workColor, h.state())
	h.tap("cartridge_color:Black")
	require.Equal(t, workConfirm, h.state())

	replies = h.tap("confirm_work")
	assert.Contains(t, button(t, replies, "Log another"), "work:cartridge")

	logged, err := h.records.ListWork("cartridge")
	require.NoError(t, err)
	require.Len(t, logged, 1)
	assert.Equal(t, "Main office", logged[0].Branch)
	assert.Equal(t, "Room 5", logged[0].Location)
	assert.Equal(t, "HP LaserJet 1020", logged[0].PrinterModel)
	assert.Equal(t, "Black", logged[0].Color)
}

func TestWork_KeepTypedBranch(t *testing.T) {
	h := newHarness(t)
	h.tap("work:cartridge")
	require.Equal(t, workBranch, h.state())

	replies := h.text("Ware")
	require.Equal(t, workBranch, h.state())
	button(t, replies, "Warehouse")

	replies = h.tap(button(t, replies, `Keep "Ware"`))
	require.Equal(t, workLocation, h.state())
	assert.Contains(t, allText(replies), "Branch: Ware.")
	assert.Equal(t, "Ware", h.session().Context.(*store.WorkContext).Branch)
}

func TestWork_UnknownSerialReprompts(t *testing.T) {
	h := newHarness(t)
	h.tap("work:pc_cleaning")

	out := allText(h.text("MISSING1"))

	assert.Contains(t, out, "was not found")
	assert.Equal(t, workSerial, h.state())
}

func TestDatabase_Selection(t *testing.T) {
	tests := []struct {
		name    string
		db      string
		want    string
		reply   string
		stays   bool
	}{
		{name: "known database", db: "TESTDB", want: "TESTDB", reply: "Now working with database TESTDB"},
		{name: "unknown database", db: "NOPE", want: "ITINVENT", reply: "Unknown database", stays: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			replies := h.cmd("db")
			require.Equal(t, databasePick, h.state())
			assert.Contains(t, allText(replies), "Current database: ITINVENT")

			out := allText(h.tap("select_db:" + tt.db))

			assert.Contains(t, out, tt.reply)
			assert.Equal(t, tt.want, h.flows.database(userID))
			if tt.stays {
				assert.Equal(t, databasePick, h.state())
			} else {
				assert.Nil(t, h.session())
			}
		})
	}
}

func TestHelp_ListsCommandsWithoutTouchingSession(t *testing.T) {
	h := newHarness(t)
	h.cmd("transfer")
	h.text("SN-A1")

	out := allText(h.cmd("help"))

	assert.Contains(t, out, "/transfer")
	assert.Equal(t, transferPhotos, h.state())
	assert.Len(t, h.session().Context.(*store.TransferContext).Items, 1)
}
