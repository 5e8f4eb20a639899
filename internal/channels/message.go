package channels

import (
	"fmt"
	"html"
	"strings"
	"time"

	"golang.org/x/text/language"

	"github.com/wolfman30/clinic-reminders/internal/appointments"
)

// Notice carries the data every channel renders into its own format.
type Notice struct {
	AppointmentID string
	PatientName   string
	DoctorName    string
	Specialty     string
	ScheduledAt   time.Time
	Kind          appointments.ReminderKind
	ClinicName    string
	Locale        language.Tag
}

var supportedLocales = []language.Tag{language.Vietnamese, language.English}

var localeMatcher = language.NewMatcher(supportedLocales)

// MatchLocale maps a BCP 47 string to one of the supported message locales.
// Unknown or empty input falls back to Vietnamese.
func MatchLocale(raw string) language.Tag {
	tag, err := language.Parse(strings.TrimSpace(raw))
	if err != nil {
		return language.Vietnamese
	}
	_, idx, conf := localeMatcher.Match(tag)
	if conf == language.No {
		return language.Vietnamese
	}
	return supportedLocales[idx]
}

type labels struct {
	lead24h    string
	lead2h     string
	dateLayout string
	timeLayout string
	smsLine    string // clinic, doctor, specialty, time, date, lead
	subject    string // lead
	greeting   string // patient
	intro      string
	fieldDoc   string
	fieldSpec  string
	fieldDate  string
	fieldTime  string
	fieldLead  string
	closing    string
}

var localeLabels = map[language.Tag]labels{
	language.Vietnamese: {
		lead24h:    "24 giờ",
		lead2h:     "2 giờ",
		dateLayout: "02/01/2006",
		timeLayout: "15:04",
		smsLine:    "[%s] Nhắc lịch: Bạn có lịch khám với %s (%s) lúc %s ngày %s, còn %s nữa.",
		subject:    "Nhắc lịch hẹn khám: còn %s",
		greeting:   "Xin chào %s,",
		intro:      "Đây là lời nhắc về lịch hẹn khám sắp tới của bạn.",
		fieldDoc:   "Bác sĩ",
		fieldSpec:  "Chuyên khoa",
		fieldDate:  "Ngày",
		fieldTime:  "Giờ",
		fieldLead:  "Thời gian còn lại",
		closing:    "Vui lòng đến trước giờ hẹn 15 phút.",
	},
	language.English: {
		lead24h:    "24 hours",
		lead2h:     "2 hours",
		dateLayout: "Monday, January 2, 2006",
		timeLayout: "3:04 PM",
		smsLine:    "[%s] Reminder: your appointment with %s (%s) is at %s on %s, in %s.",
		subject:    "Appointment reminder: %s to go",
		greeting:   "Hello %s,",
		intro:      "This is a reminder about your upcoming appointment.",
		fieldDoc:   "Doctor",
		fieldSpec:  "Specialty",
		fieldDate:  "Date",
		fieldTime:  "Time",
		fieldLead:  "Time remaining",
		closing:    "Please arrive 15 minutes before your appointment.",
	},
}

func (n Notice) labels() labels {
	if l, ok := localeLabels[n.Locale]; ok {
		return l
	}
	return localeLabels[language.Vietnamese]
}

// LeadLabel is the human-readable lead time for the reminder kind.
func (n Notice) LeadLabel() string {
	l := n.labels()
	if n.Kind == appointments.Reminder2h {
		return l.lead2h
	}
	return l.lead24h
}

// DateLabel formats the calendar date in the notice's locale.
func (n Notice) DateLabel() string {
	return n.ScheduledAt.Format(n.labels().dateLayout)
}

// TimeLabel formats the time of day in the notice's locale.
func (n Notice) TimeLabel() string {
	return n.ScheduledAt.Format(n.labels().timeLayout)
}

// SMSText renders the notice as one plain-text line.
func (n Notice) SMSText() string {
	l := n.labels()
	line := fmt.Sprintf(l.smsLine, n.ClinicName, n.DoctorName, n.Specialty, n.TimeLabel(), n.DateLabel(), n.LeadLabel())
	return strings.Join(strings.Fields(line), " ")
}

// Subject renders the email subject.
func (n Notice) Subject() string {
	return fmt.Sprintf(n.labels().subject, n.LeadLabel())
}

// EmailText renders the plain text email body.
func (n Notice) EmailText() string {
	l := n.labels()
	return fmt.Sprintf(`%s

%s

%s: %s
%s: %s
%s: %s
%s: %s
%s: %s

%s

— %s`,
		fmt.Sprintf(l.greeting, n.PatientName), l.intro,
		l.fieldDoc, n.DoctorName,
		l.fieldSpec, n.Specialty,
		l.fieldDate, n.DateLabel(),
		l.fieldTime, n.TimeLabel(),
		l.fieldLead, n.LeadLabel(),
		l.closing, n.ClinicName)
}

// EmailHTML renders the HTML email body with escaped fields.
func (n Notice) EmailHTML() string {
	l := n.labels()
	row := func(label, value string) string {
		return fmt.Sprintf(`  <tr><td style="padding: 8px; border-bottom: 1px solid #e5e7eb;"><strong>%s:</strong></td><td style="padding: 8px; border-bottom: 1px solid #e5e7eb;">%s</td></tr>
`, html.EscapeString(label), html.EscapeString(value))
	}
	return fmt.Sprintf(`<div style="font-family: sans-serif; max-width: 600px;">
<h2 style="color: #0ea5e9;">%s</h2>
<p>%s</p>
<p>%s</p>
<table style="border-collapse: collapse; margin: 20px 0;">
%s%s%s%s%s</table>
<p style="background: #f0f9ff; padding: 12px; border-radius: 8px; border-left: 4px solid #0ea5e9;">%s</p>
<p style="color: #6b7280; font-size: 12px; margin-top: 20px;">— %s</p>
</div>`,
		html.EscapeString(n.Subject()),
		html.EscapeString(fmt.Sprintf(l.greeting, n.PatientName)),
		html.EscapeString(l.intro),
		row(l.fieldDoc, n.DoctorName),
		row(l.fieldSpec, n.Specialty),
		row(l.fieldDate, n.DateLabel()),
		row(l.fieldTime, n.TimeLabel()),
		row(l.fieldLead, n.LeadLabel()),
		html.EscapeString(l.closing),
		html.EscapeString(n.ClinicName))
}
