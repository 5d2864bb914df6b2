package channels

import (
	"context"

	"github.com/nativatech/agendo-notifier/utils"
	gomail "gopkg.in/gomail.v2"
)

// Email copies a message over SMTP when its category demands
// guaranteed visibility. Recipient user ids are ignored: the message
// carries explicit addresses, and the fixed operational CC list is
// added to every send so billing events always reach the back office.
type Email struct {
	Host string
	Port int
	User string
	Pass string
	From string
	CC   []string
}

func NewEmail(host string, port int, user, pass, from string, cc []string) *Email {
	return &Email{Host: host, Port: port, User: user, Pass: pass, From: from, CC: cc}
}

func (ch *Email) Name() string { return "email" }

func (ch *Email) Enabled() bool {
	return ch.User != "" && ch.Pass != "" && ch.From != ""
}

func (ch *Email) Send(ctx context.Context, _ []uint, msg Message) Result {
	if msg.Email == nil || len(msg.Email.To) == 0 {
		return Result{}
	}

	dialer := gomail.NewDialer(ch.Host, ch.Port, ch.User, ch.Pass)
	res := Result{Total: len(msg.Email.To)}

	for _, to := range msg.Email.To {
		if err := ctx.Err(); err != nil {
			utils.ErrorLogger.Printf("email: aborted before %s: %v", to, err)
			break
		}

		m := gomail.NewMessage()
		m.SetHeader("From", ch.From)
		m.SetHeader("To", to)
		if len(ch.CC) > 0 {
			m.SetHeader("Cc", ch.CC...)
		}
		m.SetHeader("Subject", msg.Email.Subject)
		m.SetBody("text/html", msg.Email.HTML)

		if err := dialer.DialAndSend(m); err != nil {
			utils.ErrorLogger.Printf("email: send to %s: %v", to, err)
			continue
		}
		res.OK++
	}

	return res
}
