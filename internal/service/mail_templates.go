package service

import (
	"bytes"
	"fmt"
	"html/template"
)

// ── 邮件模板 ──
//
// 收件人是美国团队的经理，正文使用英文。

var missedTestTmpl = template.Must(template.New("missed_test").Parse(`<p>Hello,</p>
<p><strong>{{.Employee}}</strong> has not logged the required <strong>{{.Period}}</strong> test
for <strong>{{.Date}}</strong>.</p>
<p>The {{.Period}} test must be completed between {{.Window}} local time.</p>
<p>This is an automated message from the compliance tracker.</p>
`))

var weeklyReportTmpl = template.Must(template.New("weekly_report").Parse(`<p>Hello,</p>
<p>Attached is the test report for <strong>{{.From}}</strong> through <strong>{{.To}}</strong>
({{.Rows}} record{{if ne .Rows 1}}s{{end}}).</p>
<p>This is an automated message from the compliance tracker.</p>
`))

type missedTestData struct {
	Employee string
	Period   string
	Date     string
	Window   string
}

type weeklyReportData struct {
	From string
	To   string
	Rows int
}

func missedTestSubject(d missedTestData) string {
	return fmt.Sprintf("Missed %s test: %s (%s)", d.Period, d.Employee, d.Date)
}

func weeklyReportSubject(from, to string) string {
	return fmt.Sprintf("Weekly test report %s to %s", from, to)
}

func render(t *template.Template, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("渲染邮件模板 %s 失败: %w", t.Name(), err)
	}
	return buf.String(), nil
}
