package services

import (
	"math"
	"time"
)

// Жесткое окно сбора: последний платеж любого плана не дальше 90 дней
// от первого. Это продуктовая политика, а не техническое ограничение.
const InstallmentWindowDays = 90

// Потолок periods: шаг дат floor(90 / periods) обязан оставаться >= 1
// дня, иначе даты платежей перестают строго расти.
const MaxInstallmentPeriods = InstallmentWindowDays

type ScheduledInstallment struct {
	Number  int
	Amount  float64
	DueDate time.Time
}

// ScheduleInstallments — чистая функция: делит полную сумму на periods
// платежей с датами внутри 90-дневного окна.
//
//   - periods поднимается до minPeriods (по умолчанию 3) и срезается
//     до MaxInstallmentPeriods;
//   - шаг дат = floor(90 / periods) дней, первый платеж "сегодня";
//   - суммы округляются до 2 знаков, последний платеж забирает остаток
//     округления, так что сумма кусков равна total точно.
//
// Очередной платеж существующего плана сюда попадать НЕ должен:
// повторное деление уже поделенной суммы — ошибка, которую оркестратор
// обязан исключить (см. CheckoutService).
func ScheduleInstallments(total float64, periods, minPeriods int, now time.Time) []ScheduledInstallment {
	if minPeriods < 1 {
		minPeriods = 3
	}
	if periods < minPeriods {
		periods = minPeriods
	}
	if periods > MaxInstallmentPeriods {
		periods = MaxInstallmentPeriods
	}

	perAmount := round2(total / float64(periods))
	daysPerInstallment := InstallmentWindowDays / periods

	schedule := make([]ScheduledInstallment, periods)
	for i := 0; i < periods; i++ {
		amount := perAmount
		if i == periods-1 {
			// Последний кусок добирает остаток округления.
			amount = round2(total - perAmount*float64(periods-1))
		}
		schedule[i] = ScheduledInstallment{
			Number:  i + 1,
			Amount:  amount,
			DueDate: now.AddDate(0, 0, daysPerInstallment*i),
		}
	}
	return schedule
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
