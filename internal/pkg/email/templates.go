package email

import (
	"bytes"
	"fmt"
	"html/template"
)

// Шаблоны писем платежной подсистемы. Держим их в коде — писем мало,
// а деплой отдельной директории с шаблонами того не стоит.
var templateSources = map[string]string{
	"welcome": `
<h2>Добро пожаловать в StitchHub, {{.Name}}!</h2>
<p>Мы создали для вас аккаунт после вашей оплаты.</p>
<p>Временный пароль: <b>{{.TempPassword}}</b></p>
<p>Поменяйте его при первом входе.</p>`,

	"payment_received": `
<h2>Платеж получен</h2>
<p>{{.Name}}, мы получили ваш платеж на сумму {{printf "%.2f" .Amount}} {{.Currency}}.</p>
{{if .InstallmentInfo}}<p>{{.InstallmentInfo}}</p>{{end}}`,

	"installment_plan_created": `
<h2>План рассрочки создан</h2>
<p>{{.Name}}, ваш план на {{.Periods}} платежей оформлен.</p>
<p>Первый платеж: {{printf "%.2f" .Amount}} {{.Currency}}.</p>`,
}

type TemplateData struct {
	Name            string
	Amount          float64
	Currency        string
	Periods         int
	TempPassword    string
	InstallmentInfo string
}

var templates = template.Must(parseAll())

func parseAll() (*template.Template, error) {
	root := template.New("email")
	for name, src := range templateSources {
		if _, err := root.New(name).Parse(src); err != nil {
			return nil, err
		}
	}
	return root, nil
}

// Render генерирует HTML тела письма по имени шаблона.
func Render(name string, data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to render email template %q: %w", name, err)
	}
	return buf.String(), nil
}
