package mailer

import (
	"fmt"
	"html"
	"strings"

	"buspass/internal/models"
)

func wrapHTML(title, body string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Helvetica, Arial, sans-serif; background: #f6f6f6; margin: 0; padding: 0;">
  <div style="max-width: 560px; margin: 32px auto; background: #ffffff; border-radius: 6px;">
    <div style="background: #0b3d91; color: #ffffff; padding: 20px; text-align: center;">
      <h1 style="margin: 0; font-size: 20px;">Student Bus Pass</h1>
    </div>
    <div style="padding: 28px; color: #1a1a1a; line-height: 1.5;">
      <h2 style="margin-top: 0;">%s</h2>
      %s
    </div>
  </div>
</body>
</html>`, html.EscapeString(title), body)
}

// DecisionMessage tells the applicant the outcome of their review. It returns
// false for records that have not been decided.
func DecisionMessage(rec *models.ApplicationRecord) (Message, bool) {
	name := html.EscapeString(rec.StudentName)
	no := html.EscapeString(rec.ApplicationNo)

	msg := Message{ToEmail: rec.PersonalEmail, ToName: rec.StudentName, Kind: "decision"}
	switch rec.Status {
	case models.StatusApproved:
		msg.Subject = "Your bus pass application " + rec.ApplicationNo + " is approved"
		msg.PlainText = fmt.Sprintf("Dear %s,\n\nYour bus pass application %s has been approved. "+
			"Collect your ID card from the transport office.\n", rec.StudentName, rec.ApplicationNo)
		msg.HTML = wrapHTML("Application approved", fmt.Sprintf(
			"<p>Dear %s,</p><p>Your bus pass application <strong>%s</strong> has been approved. "+
				"Collect your ID card from the transport office.</p>", name, no))
	case models.StatusRejected:
		reason := string(rec.RejectionReason)
		msg.Subject = "Your bus pass application " + rec.ApplicationNo + " was not approved"
		msg.PlainText = fmt.Sprintf("Dear %s,\n\nYour bus pass application %s was rejected.\nReason: %s\n\n"+
			"You may submit a new application with corrected details.\n", rec.StudentName, rec.ApplicationNo, reason)
		msg.HTML = wrapHTML("Application rejected", fmt.Sprintf(
			"<p>Dear %s,</p><p>Your bus pass application <strong>%s</strong> was rejected.</p>"+
				"<p>Reason: %s</p><p>You may submit a new application with corrected details.</p>",
			name, no, html.EscapeString(reason)))
	default:
		return Message{}, false
	}
	return msg, true
}

// BacklogDigestMessage summarizes review counts for operators.
func BacklogDigestMessage(to string, counts map[models.ApplicationStatus]int64) Message {
	var plain strings.Builder
	var rows strings.Builder
	for _, status := range []models.ApplicationStatus{models.StatusPending, models.StatusApproved, models.StatusRejected} {
		fmt.Fprintf(&plain, "%s: %d\n", status, counts[status])
		fmt.Fprintf(&rows, "<tr><td>%s</td><td>%d</td></tr>", status, counts[status])
	}
	return Message{
		ToEmail:   to,
		Subject:   fmt.Sprintf("%d bus pass applications awaiting review", counts[models.StatusPending]),
		PlainText: plain.String(),
		HTML:      wrapHTML("Review backlog", "<table>"+rows.String()+"</table>"),
		Kind:      "digest",
	}
}
