package bot

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/autofondo/barbara/internal/flow"
	"github.com/autofondo/barbara/internal/mailer"
	"github.com/autofondo/barbara/internal/memory"
	"github.com/autofondo/barbara/internal/models"
	"github.com/autofondo/barbara/internal/store"
)

const ownerEmail = "jaircastillo2302@gmail.com"

var quoteIDPattern = regexp.MustCompile(`AF\d{8}[0-9A-F]{8}`)

// stubTransport records outgoing e-mails and fails on demand.
type stubTransport struct {
	sent     []*models.EmailMessage
	failures int
}

func (t *stubTransport) Send(ctx context.Context, msg *models.EmailMessage) error {
	if t.failures > 0 {
		t.failures--
		return errors.New("transport unavailable")
	}
	t.sent = append(t.sent, msg)
	return nil
}

func newTestBot(t *testing.T, transport mailer.Transport, opts ...Option) (*Orchestrator, *memory.Store) {
	t.Helper()
	mem := memory.NewStore()
	dispatcher := mailer.NewDispatcher(transport,
		mailer.WithOwnerEmail(ownerEmail),
		mailer.WithSandboxMode(true),
		mailer.WithSupportPhone("+51 999 888 777"))
	machine := flow.New(mem, dispatcher, flow.WithSupportPhone("+51 999 888 777"))
	return New(mem, machine, opts...), mem
}

func processAll(t *testing.T, o *Orchestrator, userID string, inputs ...string) []string {
	t.Helper()
	replies := make([]string, 0, len(inputs))
	for _, in := range inputs {
		replies = append(replies, o.Process(context.Background(), userID, in))
	}
	return replies
}

func TestProcess_HappyPathEmailToOwner(t *testing.T) {
	transport := &stubTransport{}
	o, mem := newTestBot(t, transport)

	replies := processAll(t, o, "u1",
		"hola", "Jair", "si quiero cotizar", "auto", "2020", "particular", "Lima",
		"si envialo", ownerEmail)

	quoteReply := replies[6]
	if !strings.Contains(quoteReply, "S/ 160") {
		t.Errorf("turn 7 must quote S/ 160, got:\n%s", quoteReply)
	}
	if !quoteIDPattern.MatchString(quoteReply) {
		t.Errorf("turn 7 must include a quote id, got:\n%s", quoteReply)
	}

	final := replies[8]
	rec := mem.GetOrCreate("u1")
	if rec.State != models.StateEmailConfirmed {
		t.Fatalf("expected EMAIL_CONFIRMED, got %s", rec.State)
	}
	if !strings.Contains(final, ownerEmail) {
		t.Errorf("confirmation must name the delivery address, got %q", final)
	}
	if len(transport.sent) != 1 || transport.sent[0].To != ownerEmail {
		t.Errorf("expected one e-mail to the owner, got %+v", transport.sent)
	}
}

func TestProcess_SandboxRedirect(t *testing.T) {
	transport := &stubTransport{}
	o, mem := newTestBot(t, transport)

	replies := processAll(t, o, "u1",
		"hola", "Jair", "si quiero cotizar", "auto", "2020", "particular", "Lima",
		"si envialo", "fernando.test@gmail.com")

	rec := mem.GetOrCreate("u1")
	if rec.State != models.StateEmailConfirmed {
		t.Fatalf("expected EMAIL_CONFIRMED, got %s", rec.State)
	}
	if len(transport.sent) != 1 || transport.sent[0].To != ownerEmail {
		t.Errorf("recipient must be rewritten to the owner, got %+v", transport.sent)
	}
	final := replies[8]
	if strings.Contains(final, "@") {
		t.Errorf("redirect acknowledgement must not disclose any address, got %q", final)
	}
}

func TestProcess_LoopGuardOnName(t *testing.T) {
	o, mem := newTestBot(t, &stubTransport{})

	replies := processAll(t, o, "u1", "hola", "????", "????", "????")
	rec := mem.GetOrCreate("u1")
	// "????" carries no salvageable token, so the guard falls back to the
	// strict one-word prompt while the state holds.
	if rec.State != models.StateWaitingName {
		t.Fatalf("expected WAITING_NAME, got %s", rec.State)
	}
	if !strings.Contains(replies[3], "una sola palabra") {
		t.Errorf("expected the strict one-word prompt, got %q", replies[3])
	}
}

func TestProcess_MotoPricing(t *testing.T) {
	o, _ := newTestBot(t, &stubTransport{})

	replies := processAll(t, o, "u1", "hola", "Ana", "si", "moto", "2015", "trabajo", "Arequipa")
	quoteReply := replies[6]
	for _, want := range []string{"S/ 90", "Moto 2015", "Uso: Trabajo", "Ciudad: Arequipa"} {
		if !strings.Contains(quoteReply, want) {
			t.Errorf("quote missing %q:\n%s", want, quoteReply)
		}
	}
}

func TestProcess_DeclineEmail(t *testing.T) {
	transport := &stubTransport{}
	o, mem := newTestBot(t, transport)

	replies := processAll(t, o, "u1",
		"hola", "Jair", "si quiero cotizar", "auto", "2020", "particular", "Lima", "no gracias")

	rec := mem.GetOrCreate("u1")
	if rec.State != models.StateComplete {
		t.Fatalf("expected COMPLETE, got %s", rec.State)
	}
	if !strings.Contains(replies[7], "+51 999 888 777") {
		t.Errorf("farewell must include the support phone, got %q", replies[7])
	}
	if len(transport.sent) != 0 {
		t.Errorf("no transport call expected on decline, got %d", len(transport.sent))
	}
}

func TestProcess_TransportFailureThenRetry(t *testing.T) {
	transport := &stubTransport{failures: 1}
	o, mem := newTestBot(t, transport)

	processAll(t, o, "u1",
		"hola", "Jair", "si quiero cotizar", "auto", "2020", "particular", "Lima", "si")
	first := o.Process(context.Background(), "u1", "user@example.com")

	rec := mem.GetOrCreate("u1")
	if rec.State != models.StateWaitingEmail {
		t.Fatalf("expected WAITING_EMAIL after transport failure, got %s", rec.State)
	}
	if !strings.Contains(first, "No pude enviar") {
		t.Errorf("expected an apology, got %q", first)
	}

	o.Process(context.Background(), "u1", "user@example.com")
	if rec.State != models.StateEmailConfirmed {
		t.Fatalf("expected EMAIL_CONFIRMED after retry, got %s", rec.State)
	}
}

func TestProcess_EmptyUserID(t *testing.T) {
	o, _ := newTestBot(t, &stubTransport{})
	if got := o.Process(context.Background(), "  ", "hola"); got != flow.FallbackReply {
		t.Errorf("expected fallback for empty user id, got %q", got)
	}
}

func TestProcess_EmptyInbound(t *testing.T) {
	o, mem := newTestBot(t, &stubTransport{})
	if got := o.Process(context.Background(), "u1", "   "); got != flow.FallbackReply {
		t.Errorf("expected fallback for blank inbound, got %q", got)
	}
	if len(mem.GetOrCreate("u1").History) != 0 {
		t.Error("blank turns must not be recorded")
	}
}

func TestProcess_OverlongInboundTruncated(t *testing.T) {
	o, mem := newTestBot(t, &stubTransport{})

	long := strings.Repeat("a", models.MaxInboundLength+100)
	if got := o.Process(context.Background(), "u1", long); got == flow.FallbackReply {
		t.Errorf("over-long inbound must be trimmed, not rejected; got fallback")
	}
	rec := mem.GetOrCreate("u1")
	if len(rec.History) != 1 {
		t.Fatalf("expected one recorded turn, got %d", len(rec.History))
	}
	if n := len([]rune(rec.History[0].Inbound)); n > models.MaxTurnTextLength {
		t.Errorf("stored turn text must be truncated, got %d runes", n)
	}
}

// panicEnhancer triggers the orchestrator's panic barrier.
type panicEnhancer struct{}

func (panicEnhancer) EnhanceReply(ctx context.Context, mem *models.ConversationMemory, inbound, scripted string) string {
	panic("enhancer exploded")
}

func TestProcess_PanicRecovery(t *testing.T) {
	o, _ := newTestBot(t, &stubTransport{}, WithEnhancer(panicEnhancer{}))
	if got := o.Process(context.Background(), "u1", "hola"); got != flow.FallbackReply {
		t.Errorf("panic must surface as the fallback reply, got %q", got)
	}
}

// echoEnhancer proves the enhancer sees the scripted reply.
type echoEnhancer struct{}

func (echoEnhancer) EnhanceReply(ctx context.Context, mem *models.ConversationMemory, inbound, scripted string) string {
	return "✨ " + scripted
}

func TestProcess_EnhancerWrapsReply(t *testing.T) {
	o, mem := newTestBot(t, &stubTransport{}, WithEnhancer(echoEnhancer{}))
	got := o.Process(context.Background(), "u1", "hola")
	if !strings.HasPrefix(got, "✨ ") {
		t.Errorf("expected enhanced reply, got %q", got)
	}
	rec := mem.GetOrCreate("u1")
	if rec.History[0].Outbound != got {
		t.Error("history must record the reply the user actually received")
	}
}

func TestProcess_ArchivesQuoteLifecycle(t *testing.T) {
	archive := store.NewInMemoryStore()
	o, _ := newTestBot(t, &stubTransport{}, WithArchive(archive))

	processAll(t, o, "u1",
		"hola", "Jair", "si quiero cotizar", "auto", "2020", "particular", "Lima")

	quotes, err := archive.GetQuotes()
	if err != nil || len(quotes) != 1 {
		t.Fatalf("expected 1 archived quote, got %d (err=%v)", len(quotes), err)
	}
	rec := quotes[0]
	if rec.UserID != "u1" || rec.ClientName != "Jair" || rec.PriceSoles != 160 || rec.EmailedTo != "" {
		t.Errorf("unexpected archived record: %+v", rec)
	}

	processAll(t, o, "u1", "si", ownerEmail)
	quotes, _ = archive.GetQuotes()
	if quotes[0].EmailedTo != ownerEmail {
		t.Errorf("expected emailed_to stamp, got %q", quotes[0].EmailedTo)
	}
	if len(quotes) != 1 {
		t.Errorf("e-mail confirmation must not duplicate the record, got %d", len(quotes))
	}
}

func TestProcess_ConcurrentTurnsSameUser(t *testing.T) {
	o, mem := newTestBot(t, &stubTransport{})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.Process(context.Background(), "u1", "hola")
		}()
	}
	wg.Wait()

	rec := mem.GetOrCreate("u1")
	if len(rec.History) != models.MaxHistoryTurns {
		t.Errorf("expected history capped at %d, got %d", models.MaxHistoryTurns, len(rec.History))
	}
}
