package lunar

import (
	"time"

	"github.com/6tail/lunar-go/calendar"
)

// Adapter 公历转农历的适配层，模板里 {{Festival}} 的数据来源
type Adapter struct{}

func NewAdapter() *Adapter {
	return &Adapter{}
}

// Festival 返回 "干支生肖年农历月日"，当天恰逢节气时再追加 " 节气名"
// 例如 "乙巳蛇年五月初二" 或 "乙巳蛇年五月初五 芒种"
func (a *Adapter) Festival(t time.Time) string {
	l := calendar.NewSolarFromDate(t).GetLunar()
	info := l.GetYearInGanZhi() + l.GetYearShengXiao() + "年" + l.GetMonthInChinese() + "月" + l.GetDayInChinese()
	if jieQi := l.GetJieQi(); jieQi != "" {
		info += " " + jieQi
	}
	return info
}
