package email

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/fiapx/fiapx-pose-service/internal/domain/port"
	"go.uber.org/zap"
)

type SMTPNotifier struct {
	host   string
	port   int
	from   string
	logger *zap.Logger
}

func NewSMTPNotifier(host string, smtpPort int, from string, logger *zap.Logger) *SMTPNotifier {
	return &SMTPNotifier{host: host, port: smtpPort, from: from, logger: logger}
}

func (n *SMTPNotifier) NotifyFailure(_ context.Context, notice port.FailureNotice) error {
	addr := fmt.Sprintf("%s:%d", n.host, n.port)
	msg := failureMessage(n.from, notice)

	err := smtp.SendMail(addr, nil, n.from, []string{notice.UserEmail}, msg)
	if err != nil {
		n.logger.Error("failed to send failure notification email",
			zap.String("to", notice.UserEmail),
			zap.String("job_id", notice.JobID),
			zap.Error(err),
		)
		return fmt.Errorf("send email: %w", err)
	}

	n.logger.Info("failure notification email sent",
		zap.String("to", notice.UserEmail),
		zap.String("job_id", notice.JobID),
	)
	return nil
}

func failureMessage(from string, notice port.FailureNotice) []byte {
	subject := fmt.Sprintf("FIAP X - Pose Extraction Failed [Job %s]", notice.JobID)
	body := fmt.Sprintf(
		"Hello,\r\n\r\n"+
			"We could not extract pose landmarks from your video after %d attempt(s).\r\n\r\n"+
			"Job ID: %s\r\n"+
			"Video: %s\r\n"+
			"Error: %s\r\n\r\n"+
			"If the video plays correctly on your machine, please upload it again or contact support.\r\n\r\n"+
			"-- FIAP X Pose Service",
		notice.Attempts, notice.JobID, notice.VideoKey, notice.Reason,
	)

	return []byte(fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s",
		from, notice.UserEmail, subject, body,
	))
}
