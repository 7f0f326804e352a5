package emailsvc

import (
	"context"
	"log"
	"net/mail"
	"sync"
	"time"

	"github.com/trezcool/absento/core"
)

type consoleService struct {
	defaultFromEmail mail.Address
	subjPrefix       string
	std              *log.Logger
	disableOutput    bool
}

var _ core.EmailService = (*consoleService)(nil)

// NewConsoleService prints emails instead of sending them.
func NewConsoleService(conf *core.Config, std *log.Logger) core.EmailService {
	return &consoleService{
		defaultFromEmail: conf.DefaultFromEmail(),
		subjPrefix:       "[" + conf.AppName + "] ",
		std:              std,
	}
}

func (svc *consoleService) Send(_ context.Context, msg *core.EmailMessage) error {
	if err := msg.Prepare(); err != nil {
		return err
	}
	raw, err := buildMIME(svc.defaultFromEmail, svc.subjPrefix+msg.Subject, msg, time.Now())
	if err != nil {
		return err
	}
	if !svc.disableOutput {
		svc.std.Println(string(raw))
	}
	return nil
}

// ConsoleServiceMock keeps sent messages in memory.
type ConsoleServiceMock struct {
	consoleService

	mu   sync.Mutex
	sent []core.EmailMessage
	fail error
}

func NewConsoleServiceMock(conf *core.Config) *ConsoleServiceMock {
	return &ConsoleServiceMock{
		consoleService: consoleService{
			defaultFromEmail: conf.DefaultFromEmail(),
			subjPrefix:       "[" + conf.AppName + "] ",
			disableOutput:    true,
		},
	}
}

func (svc *ConsoleServiceMock) Send(ctx context.Context, msg *core.EmailMessage) error {
	svc.mu.Lock()
	fail := svc.fail
	svc.mu.Unlock()
	if fail != nil {
		return fail
	}

	if err := svc.consoleService.Send(ctx, msg); err != nil {
		return err
	}
	svc.mu.Lock()
	svc.sent = append(svc.sent, *msg)
	svc.mu.Unlock()
	return nil
}

// FailWith makes every following Send return err. A nil err restores delivery.
func (svc *ConsoleServiceMock) FailWith(err error) {
	svc.mu.Lock()
	svc.fail = err
	svc.mu.Unlock()
}

func (svc *ConsoleServiceMock) SentMessages() []core.EmailMessage {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return append([]core.EmailMessage(nil), svc.sent...)
}
