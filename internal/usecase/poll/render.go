package poll

import (
	"strconv"
	"strings"
	"text/template"

	"vaxslot-notifier/internal/domain/entity"
	"vaxslot-notifier/internal/pkg/markdown"
)

// FeeNotAvailable is shown when the center lists no fee for the vaccine.
const FeeNotAvailable = "NA"

// SignupURL is where recipients log in to book the slot.
const SignupURL = "https://selfregistration.cowin.gov.in/"

// alertTemplate is MarkdownV2. Static markup is written pre-escaped; every
// placeholder receives an already escaped value.
const alertTemplate = `Below details found
*Name*: {{.CenterName}}
*District*: {{.District}}
*Pincode*: {{.Pincode}}
*Fee Type*: {{.FeeType}}
*Vaccine*: {{.Vaccine}}
*Fees*: {{.Fee}} rs
*Date*: {{.Date}}
*Age*: {{.Age}}
*Dose 1*: {{.Dose1}} slots
*Dose 2*: {{.Dose2}} slots
{{.Separator}}
Click [here]({{.SignupURL}}) to login and schedule:
\(notification count for this session: {{.Count}} \)`

var separator = strings.Repeat(`\-`, 40)

// Renderer turns an eligible session into a Telegram MarkdownV2 message.
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer parses the alert template.
func NewRenderer() *Renderer {
	return &Renderer{tmpl: template.Must(template.New("alert").Parse(alertTemplate))}
}

// Render returns the message for s. The count line shows priorCount+1, the
// number of the attempt this message represents.
func (r *Renderer) Render(s entity.Session, priorCount int) string {
	fee := s.Fee
	if fee == "" {
		fee = FeeNotAvailable
	}

	fields := map[string]string{
		"CenterName": s.CenterName,
		"District":   s.DistrictName,
		"Pincode":    s.Pincode,
		"FeeType":    s.FeeType,
		"Vaccine":    s.Vaccine,
		"Fee":        fee,
		"Date":       s.DisplayDate(),
		"Age":        strconv.Itoa(entity.IntValue(s.MinAgeLimit)),
		"Dose1":      strconv.Itoa(entity.IntValue(s.Dose1Capacity)),
		"Dose2":      strconv.Itoa(entity.IntValue(s.Dose2Capacity)),
		"Count":      strconv.Itoa(priorCount + 1),
	}
	for k, v := range fields {
		fields[k] = markdown.EscapeV2(v)
	}
	fields["Separator"] = separator
	// inside (...) only ')' and '\' need escaping
	fields["SignupURL"] = SignupURL

	var b strings.Builder
	if err := r.tmpl.Execute(&b, fields); err != nil {
		// the template and its data are fixed; this only fires on a programming error
		panic(err)
	}
	return b.String()
}
