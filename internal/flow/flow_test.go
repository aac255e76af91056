package flow

import (
	"context"
	"strings"
	"testing"

	"github.com/autofondo/barbara/internal/memory"
	"github.com/autofondo/barbara/internal/models"
)

// mockDispatcher scripts SendQuotation outcomes for the machine under test.
type mockDispatcher struct {
	results []bool // consumed in order; empty means always succeed
	redirect bool
	calls    []string // recipient of each call
}

func (d *mockDispatcher) SendQuotation(ctx context.Context, email, clientName string, q *models.QuoteData) (bool, bool) {
	d.calls = append(d.calls, email)
	if len(d.results) == 0 {
		return true, d.redirect
	}
	sent := d.results[0]
	d.results = d.results[1:]
	if !sent {
		return false, false
	}
	return true, d.redirect
}

func newTestMachine(t *testing.T, d Dispatcher) (*Machine, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	if d == nil {
		d = &mockDispatcher{}
	}
	m := New(store, d, WithSupportPhone("+51 999 888 777"))
	return m, store
}

// drive feeds messages in order and returns the last outbound.
func drive(t *testing.T, m *Machine, mem *models.ConversationMemory, inputs ...string) string {
	t.Helper()
	var out string
	for _, in := range inputs {
		out = m.Step(context.Background(), mem, in)
		if out == "" {
			t.Fatalf("empty outbound for input %q in state %s", in, mem.State)
		}
	}
	return out
}

func TestStep_HappyPathToQuote(t *testing.T) {
	m, store := newTestMachine(t, nil)
	mem := store.GetOrCreate("u1")

	out := drive(t, m, mem, "hola")
	if mem.State != models.StateWaitingName {
		t.Fatalf("expected WAITING_NAME, got %s", mem.State)
	}
	if !strings.Contains(out, "Barbara") {
		t.Errorf("greeting should introduce Barbara: %q", out)
	}

	out = drive(t, m, mem, "Jair")
	if mem.State != models.StateNameReceived || mem.UserName != "Jair" {
		t.Fatalf("expected NAME_RECEIVED with name Jair, got state=%s name=%q", mem.State, mem.UserName)
	}
	if !strings.Contains(out, "Jair") {
		t.Errorf("acknowledgement should greet by name: %q", out)
	}

	drive(t, m, mem, "si quiero cotizar", "auto", "2020", "particular")
	if mem.State != models.StateCollectingCity {
		t.Fatalf("expected COLLECTING_CITY, got %s", mem.State)
	}

	out = drive(t, m, mem, "Lima")
	if mem.State != models.StateAskingEmail {
		t.Fatalf("expected ASKING_EMAIL, got %s", mem.State)
	}
	if mem.Quote == nil {
		t.Fatal("quote must be generated on city capture")
	}
	if !strings.Contains(out, "S/ 160") {
		t.Errorf("expected price S/ 160 in quote, got:\n%s", out)
	}
	if !strings.Contains(out, mem.Quote.QuoteID) || !strings.HasPrefix(mem.Quote.QuoteID, "AF") {
		t.Errorf("rendered quote missing quote id %q", mem.Quote.QuoteID)
	}
}

func TestStep_EmailDeliveryConfirmed(t *testing.T) {
	d := &mockDispatcher{}
	m, store := newTestMachine(t, d)
	mem := store.GetOrCreate("u1")

	drive(t, m, mem, "hola", "Jair", "si", "auto", "2020", "particular", "Lima", "si envialo")
	if mem.State != models.StateWaitingEmail {
		t.Fatalf("expected WAITING_EMAIL, got %s", mem.State)
	}

	out := drive(t, m, mem, "jaircastillo2302@gmail.com")
	if mem.State != models.StateEmailConfirmed {
		t.Fatalf("expected EMAIL_CONFIRMED, got %s", mem.State)
	}
	if mem.Email != "jaircastillo2302@gmail.com" {
		t.Errorf("email not recorded: %q", mem.Email)
	}
	if !strings.Contains(out, "jaircastillo2302@gmail.com") {
		t.Errorf("confirmation should name the address: %q", out)
	}
	if len(d.calls) != 1 || d.calls[0] != "jaircastillo2302@gmail.com" {
		t.Errorf("dispatcher calls = %v", d.calls)
	}
}

func TestStep_SandboxRedirectKeepsOverridePrivate(t *testing.T) {
	d := &mockDispatcher{redirect: true}
	m, store := newTestMachine(t, d)
	mem := store.GetOrCreate("u1")

	drive(t, m, mem, "hola", "Jair", "si", "auto", "2020", "particular", "Lima", "si envialo")
	out := drive(t, m, mem, "fernando.test@gmail.com")
	if mem.State != models.StateEmailConfirmed {
		t.Fatalf("expected EMAIL_CONFIRMED, got %s", mem.State)
	}
	// The redirect notice must not leak any address.
	if strings.Contains(out, "@") {
		t.Errorf("redirect notice leaks an address: %q", out)
	}
	if !strings.Contains(out, mem.Quote.QuoteID) {
		t.Errorf("redirect notice should reference the quote id: %q", out)
	}
}

func TestStep_DeclineEmailCompletes(t *testing.T) {
	d := &mockDispatcher{}
	m, store := newTestMachine(t, d)
	mem := store.GetOrCreate("u1")

	drive(t, m, mem, "hola", "Jair", "si", "auto", "2020", "particular", "Lima")
	out := drive(t, m, mem, "no gracias")
	if mem.State != models.StateComplete {
		t.Fatalf("expected COMPLETE, got %s", mem.State)
	}
	if !strings.Contains(out, "+51 999 888 777") {
		t.Errorf("farewell should include the support phone: %q", out)
	}
	if len(d.calls) != 0 {
		t.Errorf("no transport call expected on decline, got %d", len(d.calls))
	}
}

func TestStep_TransportFailureThenRetry(t *testing.T) {
	d := &mockDispatcher{results: []bool{false, true}}
	m, store := newTestMachine(t, d)
	mem := store.GetOrCreate("u1")

	drive(t, m, mem, "hola", "Jair", "si", "auto", "2020", "particular", "Lima", "si")
	out := drive(t, m, mem, "user@example.com")
	if mem.State != models.StateWaitingEmail {
		t.Fatalf("expected to stay WAITING_EMAIL after failure, got %s", mem.State)
	}
	if !strings.Contains(out, "+51 999 888 777") {
		t.Errorf("apology should offer the support phone: %q", out)
	}

	drive(t, m, mem, "user@example.com")
	if mem.State != models.StateEmailConfirmed {
		t.Fatalf("expected EMAIL_CONFIRMED after retry, got %s", mem.State)
	}
}

func TestStep_MotoPricing(t *testing.T) {
	m, store := newTestMachine(t, nil)
	mem := store.GetOrCreate("u1")

	out := drive(t, m, mem, "hola", "Ana", "si", "moto", "2015", "trabajo", "Arequipa")
	for _, want := range []string{"S/ 90", "Moto 2015", "Uso: Trabajo", "Ciudad: Arequipa"} {
		if !strings.Contains(out, want) {
			t.Errorf("quote missing %q:\n%s", want, out)
		}
	}
}

func TestStep_LoopGuardOnName(t *testing.T) {
	m, store := newTestMachine(t, nil)
	mem := store.GetOrCreate("u1")

	drive(t, m, mem, "hola")
	drive(t, m, mem, "????")
	drive(t, m, mem, "????")
	out := drive(t, m, mem, "????")
	// Nothing salvageable: strict one-word prompt, still waiting.
	if mem.State != models.StateWaitingName {
		t.Fatalf("expected WAITING_NAME, got %s", mem.State)
	}
	if out != replyNameLastChance {
		t.Errorf("expected the strict name prompt, got %q", out)
	}
}

func TestStep_LoopGuardSalvagesFlexibleName(t *testing.T) {
	m, store := newTestMachine(t, nil)
	mem := store.GetOrCreate("u1")

	drive(t, m, mem, "hola", "????", "????")
	drive(t, m, mem, "si, fernando :)")
	if mem.State != models.StateNameReceived {
		t.Fatalf("expected NAME_RECEIVED, got %s", mem.State)
	}
	if mem.UserName != "Fernando" {
		t.Errorf("expected salvaged name Fernando, got %q", mem.UserName)
	}
}

func TestStep_LoopGuardDefaultsVehicleFields(t *testing.T) {
	m, store := newTestMachine(t, nil)
	mem := store.GetOrCreate("u1")

	drive(t, m, mem, "hola", "Jair", "si")
	out := drive(t, m, mem, "mmm", "mmm", "mmm")
	if mem.State != models.StateCollectingVehicleYear {
		t.Fatalf("expected forced progression to COLLECTING_VEHICLE_YEAR, got %s", mem.State)
	}
	if mem.VehicleType != DefaultVehicleType {
		t.Errorf("expected default vehicle type, got %q", mem.VehicleType)
	}
	if !strings.Contains(out, "año") {
		t.Errorf("expected year question, got %q", out)
	}

	// Force defaults through the remaining collection states.
	drive(t, m, mem, "mmm", "mmm", "mmm")
	if mem.State != models.StateCollectingVehicleUsage || mem.VehicleYear != DefaultVehicleYear {
		t.Fatalf("expected default year %d in COLLECTING_VEHICLE_USAGE, got year=%d state=%s",
			DefaultVehicleYear, mem.VehicleYear, mem.State)
	}
	drive(t, m, mem, "mmm", "mmm", "mmm")
	if mem.State != models.StateCollectingCity || mem.VehicleUsage != DefaultVehicleUsage {
		t.Fatalf("expected default usage in COLLECTING_CITY, got usage=%q state=%s", mem.VehicleUsage, mem.State)
	}
	drive(t, m, mem, "??", "??", "??")
	if mem.State != models.StateAskingEmail || mem.City != DefaultCity {
		t.Fatalf("expected default city and ASKING_EMAIL, got city=%q state=%s", mem.City, mem.State)
	}
	if mem.Quote == nil {
		t.Fatal("forced city progression must still generate the quote")
	}
}

func TestStep_RetriesResetOnProgression(t *testing.T) {
	m, store := newTestMachine(t, nil)
	mem := store.GetOrCreate("u1")

	drive(t, m, mem, "hola", "????", "????", "Jair")
	if n := mem.RetriesPerState[models.StateWaitingName]; n != 0 {
		t.Errorf("retries not reset after progression, got %d", n)
	}
}

func TestStep_NameNeverOverwritten(t *testing.T) {
	m, store := newTestMachine(t, nil)
	mem := store.GetOrCreate("u1")

	drive(t, m, mem, "hola", "Jair", "si")
	drive(t, m, mem, "soy pedro y tengo un auto")
	if mem.UserName != "Jair" {
		t.Errorf("name was overwritten to %q", mem.UserName)
	}
}

func TestStep_StateOnlyConsultsRelevantExtractor(t *testing.T) {
	m, store := newTestMachine(t, nil)
	mem := store.GetOrCreate("u1")

	drive(t, m, mem, "hola", "Jair", "si")
	// A year in the vehicle-type state must not skip ahead.
	drive(t, m, mem, "2020")
	if mem.State != models.StateCollectingVehicleType {
		t.Fatalf("year input must not progress the type state, got %s", mem.State)
	}
	if mem.VehicleYear != 0 {
		t.Errorf("year must not be captured in the type state, got %d", mem.VehicleYear)
	}
}

func TestStep_InvariantViolationResets(t *testing.T) {
	m, store := newTestMachine(t, nil)
	mem := store.GetOrCreate("u1")
	mem.State = models.StateAskingEmail // no quote present

	out := m.Step(context.Background(), mem, "si")
	if mem.State != models.StateInitial {
		t.Fatalf("expected reset to INITIAL, got %s", mem.State)
	}
	if out != FallbackReply {
		t.Errorf("expected fallback reply, got %q", out)
	}
}

func TestStep_EmailConfirmedStaysStable(t *testing.T) {
	m, store := newTestMachine(t, nil)
	mem := store.GetOrCreate("u1")

	drive(t, m, mem, "hola", "Jair", "si", "auto", "2020", "particular", "Lima", "si", "a@b.com")
	for i := 0; i < 3; i++ {
		drive(t, m, mem, "gracias")
		if mem.State != models.StateEmailConfirmed {
			t.Fatalf("EMAIL_CONFIRMED must be absorbing, got %s", mem.State)
		}
	}
}

func TestStep_ForcedProgressionBound(t *testing.T) {
	// No state may absorb more than K+1 consecutive turns without either
	// progressing or switching to its documented stuck prompt.
	m, store := newTestMachine(t, nil)
	mem := store.GetOrCreate("u1")

	drive(t, m, mem, "hola", "Jair", "si")
	start := mem.State
	for i := 0; i < models.MaxRetriesPerState; i++ {
		drive(t, m, mem, "zzz sin sentido")
	}
	if mem.State == start {
		t.Fatalf("state %s did not progress after %d misses", start, models.MaxRetriesPerState)
	}
}
