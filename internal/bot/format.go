package bot

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"tally/internal/core"
)

type messages struct {
	Help          string
	Recorded      string // amount, actor
	RoundTotal    string // total, count
	Empty         string
	ReportHeader  string // window start
	Elided        string // count
	SumHeader     string
	SummaryRound  string
	SummaryAll    string
	Total         string // total, count
	Categories    string
	People        string
	Undone        string // amount, actor
	NothingToUndo string
	Reset         string // count
	ResetAll      string // count
	Settings      string // zone, day start, currency, language, window start, window end
	NoCurrency    string
	Updated       string
	OperatorAdded string // name
	OperatorGone  string // name
	NotOperator   string
	NoOperators   string
	Operators     string
	NoAdmins      string
	Admins        string
	Renewed       string // user, expiry
	WhoAmI        string // role
	AdminUntil    string // expiry
	ExportCaption string // count
	Denied        string // need
	Invalid       string // detail
	Unavailable   string
	NeedReply     string
	Usage         map[string]string
}

var catalog = map[core.Language]messages{
	core.LangEN: {
		Help: "🤖 Tally is running\n" +
			"Send +100 or -50 (optionally: label quantity, e.g. +12.5 coffee 3)\n" +
			"Reply to someone to record for them\n" +
			"/report [n] latest entries\n" +
			"/sum totals per person\n" +
			"/summary [all] totals by category and person\n" +
			"/undo remove the latest entry\n" +
			"/settings show chat settings\n" +
			"/whoami show your role",
		Recorded:      "✅ Recorded %s for %s",
		RoundTotal:    "Round total: %s (%d entries)",
		Empty:         "📭 No entries",
		ReportHeader:  "📒 Latest entries since %s:",
		Elided:        "… %d earlier entries",
		SumHeader:     "👥 Totals per person:",
		SummaryRound:  "📊 Current round",
		SummaryAll:    "📊 All history",
		Total:         "Total: %s (%d entries)",
		Categories:    "By category:",
		People:        "By person:",
		Undone:        "↩️ Removed %s (%s)",
		NothingToUndo: "Nothing to undo",
		Reset:         "🧹 Round reset, %d entries removed",
		ResetAll:      "🧹 History cleared, %d entries removed",
		Settings:      "⚙️ Settings\nTime zone: %s\nDay start: %s\nCurrency: %s\nLanguage: %s\nCurrent round: %s → %s",
		NoCurrency:    "none",
		Updated:       "✅ Settings updated",
		OperatorAdded: "✅ %s is now an operator",
		OperatorGone:  "✅ %s is no longer an operator",
		NotOperator:   "That user is not an operator",
		NoOperators:   "No operators in this chat",
		Operators:     "👷 Operators:",
		NoAdmins:      "No active admins",
		Admins:        "🛡 Admins:",
		Renewed:       "✅ Admin %d renewed until %s",
		WhoAmI:        "You are: %s",
		AdminUntil:    "Admin until %s",
		ExportCaption: "📎 %d entries",
		Denied:        "⛔ Not allowed, requires %s",
		Invalid:       "⚠️ %s",
		Unavailable:   "⏳ Temporarily unavailable, please try again",
		NeedReply:     "Reply to a message of the user",
		Usage: map[string]string{
			"report":   "Usage: /report [n]",
			"timezone": "Usage: /timezone +7 (between -12 and +14)",
			"daystart": "Usage: /daystart HH:MM",
			"currency": "Usage: /currency <label>",
			"language": "Usage: /language en|th",
			"renew":    "Usage: /renew <user_id> <days> or reply with /renew <days>",
		},
	},
	core.LangTH: {
		Help: "🤖 บอทเริ่มทำงาน\n" +
			"ส่ง: +100 หรือ -50 (เพิ่มป้ายและจำนวนได้ เช่น +12.5 กาแฟ 3)\n" +
			"ใช้ reply เพื่อระบุคน\n" +
			"/report [n] ดูรายการ\n" +
			"/sum สรุปตามคน\n" +
			"/summary [all] สรุปตามหมวดและคน\n" +
			"/undo ยกเลิกรายการล่าสุด\n" +
			"/settings ดูการตั้งค่า\n" +
			"/whoami ดูสิทธิ์ของคุณ",
		Recorded:      "✅ บันทึก %s ให้ %s",
		RoundTotal:    "ยอดรอบนี้: %s (%d รายการ)",
		Empty:         "📭 ไม่มีข้อมูล",
		ReportHeader:  "📒 รายการล่าสุด ตั้งแต่ %s:",
		Elided:        "… ก่อนหน้าอีก %d รายการ",
		SumHeader:     "👥 สรุปตามคน:",
		SummaryRound:  "📊 รอบปัจจุบัน",
		SummaryAll:    "📊 ทั้งหมด",
		Total:         "รวม: %s (%d รายการ)",
		Categories:    "ตามหมวด:",
		People:        "ตามคน:",
		Undone:        "↩️ ลบ %s (%s)",
		NothingToUndo: "ไม่มีรายการให้ยกเลิก",
		Reset:         "🧹 รีเซ็ตรอบแล้ว ลบ %d รายการ",
		ResetAll:      "🧹 ล้างประวัติแล้ว ลบ %d รายการ",
		Settings:      "⚙️ การตั้งค่า\nเขตเวลา: %s\nเริ่มวัน: %s\nสกุลเงิน: %s\nภาษา: %s\nรอบปัจจุบัน: %s → %s",
		NoCurrency:    "ไม่มี",
		Updated:       "✅ บันทึกการตั้งค่าแล้ว",
		OperatorAdded: "✅ %s เป็นผู้บันทึกแล้ว",
		OperatorGone:  "✅ %s ไม่เป็นผู้บันทึกแล้ว",
		NotOperator:   "ผู้ใช้นี้ไม่ใช่ผู้บันทึก",
		NoOperators:   "ยังไม่มีผู้บันทึกในแชทนี้",
		Operators:     "👷 ผู้บันทึก:",
		NoAdmins:      "ไม่มีแอดมินที่ใช้งานอยู่",
		Admins:        "🛡 แอดมิน:",
		Renewed:       "✅ ต่ออายุแอดมิน %d ถึง %s",
		WhoAmI:        "สิทธิ์ของคุณ: %s",
		AdminUntil:    "แอดมินถึง %s",
		ExportCaption: "📎 %d รายการ",
		Denied:        "⛔ ไม่มีสิทธิ์ ต้องเป็น %s",
		Invalid:       "⚠️ %s",
		Unavailable:   "⏳ ระบบไม่พร้อมชั่วคราว กรุณาลองใหม่",
		NeedReply:     "กรุณา reply ข้อความของผู้ใช้",
		Usage: map[string]string{
			"report":   "วิธีใช้: /report [n]",
			"timezone": "วิธีใช้: /timezone +7 (ระหว่าง -12 ถึง +14)",
			"daystart": "วิธีใช้: /daystart HH:MM",
			"currency": "วิธีใช้: /currency <หน่วย>",
			"language": "วิธีใช้: /language en|th",
			"renew":    "วิธีใช้: /renew <user_id> <วัน> หรือ reply ด้วย /renew <วัน>",
		},
	},
}

func msgs(lang core.Language) messages {
	if m, ok := catalog[lang]; ok {
		return m
	}
	return catalog[core.LangEN]
}

const (
	shortLayout = "2006-01-02 15:04"
	clockLayout = "15:04"
)

// money renders m with the chat's display unit, if any.
func money(cfg core.ChatConfig, m core.Money) string {
	if cfg.Currency == "" {
		return m.String()
	}
	return m.String() + " " + cfg.Currency
}

func signed(cfg core.ChatConfig, m core.Money) string {
	if cfg.Currency == "" {
		return m.Signed()
	}
	return m.Signed() + " " + cfg.Currency
}

func localStamp(cfg core.ChatConfig, t time.Time) string {
	return core.LocalTime(cfg, t).Format(shortLayout) + " " + core.Zone(cfg).String()
}

// messageLink points at a message of a supergroup. Other chats have no
// public message links.
func messageLink(chatID, messageID int64) string {
	if messageID == 0 {
		return ""
	}
	s := strconv.FormatInt(chatID, 10)
	if !strings.HasPrefix(s, "-100") {
		return ""
	}
	return fmt.Sprintf("https://t.me/c/%s/%d", s[4:], messageID)
}

func formatRecorded(cfg core.ChatConfig, tx core.Transaction, round core.Summary) string {
	m := msgs(cfg.Language)
	var b strings.Builder
	fmt.Fprintf(&b, m.Recorded, signed(cfg, tx.Amount), tx.Actor)
	if tx.Label != "" {
		b.WriteString(" · " + describeLabel(tx))
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, m.RoundTotal, money(cfg, round.Total), round.Count)
	return b.String()
}

func describeLabel(tx core.Transaction) string {
	if tx.Quantity == nil {
		return tx.Label
	}
	return tx.Label + " ×" + tx.Quantity.String()
}

func formatReport(cfg core.ChatConfig, w core.Window, page core.Page) string {
	m := msgs(cfg.Language)
	if page.Total == 0 {
		return m.Empty
	}
	var b strings.Builder
	fmt.Fprintf(&b, m.ReportHeader, localStamp(cfg, w.Start))
	b.WriteString("\n")
	if page.Elided > 0 {
		fmt.Fprintf(&b, m.Elided, page.Elided)
		b.WriteString("\n")
	}
	for _, e := range page.Entries {
		tx := e.Transaction
		fmt.Fprintf(&b, "%d. %s | %s (%s)",
			e.Index,
			core.LocalTime(cfg, tx.CreatedAt).Format(clockLayout),
			signed(cfg, tx.Amount),
			tx.Actor)
		if tx.Label != "" {
			b.WriteString(" " + describeLabel(tx))
		}
		fmt.Fprintf(&b, " = %s\n", money(cfg, e.Running))
		if link := messageLink(tx.ChatID, tx.ReplyMessageID); link != "" {
			b.WriteString(link + "\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatRanking(cfg core.ChatConfig, b *strings.Builder, ranking []core.ActorTotal) {
	for i, a := range ranking {
		fmt.Fprintf(b, "%d. %s : %s\n", i+1, a.Actor, money(cfg, a.Total))
	}
}

func formatSum(cfg core.ChatConfig, s core.Summary) string {
	m := msgs(cfg.Language)
	if s.Count == 0 {
		return m.Empty
	}
	var b strings.Builder
	b.WriteString(m.SumHeader + "\n")
	formatRanking(cfg, &b, s.Ranking())
	return strings.TrimRight(b.String(), "\n")
}

func formatSummary(cfg core.ChatConfig, all bool, s core.Summary) string {
	m := msgs(cfg.Language)
	if s.Count == 0 {
		return m.Empty
	}
	var b strings.Builder
	if all {
		b.WriteString(m.SummaryAll + "\n")
	} else {
		b.WriteString(m.SummaryRound + "\n")
	}
	fmt.Fprintf(&b, m.Total, money(cfg, s.Total), s.Count)
	b.WriteString("\n\n" + m.Categories + "\n")
	for _, c := range s.Categories() {
		fmt.Fprintf(&b, "• %s: %s", c.Label, money(cfg, c.Subtotal))
		if !c.Quantity.IsZero() {
			fmt.Fprintf(&b, " ×%s", c.Quantity.String())
		}
		fmt.Fprintf(&b, " (%d)\n", c.Count)
	}
	b.WriteString("\n" + m.People + "\n")
	formatRanking(cfg, &b, s.Ranking())
	return strings.TrimRight(b.String(), "\n")
}

func formatSettings(cfg core.ChatConfig, w core.Window) string {
	m := msgs(cfg.Language)
	currency := cfg.Currency
	if currency == "" {
		currency = m.NoCurrency
	}
	return fmt.Sprintf(m.Settings,
		core.Zone(cfg).String(),
		cfg.DayStart.String(),
		currency,
		string(cfg.Language),
		core.LocalTime(cfg, w.Start).Format(shortLayout),
		core.LocalTime(cfg, w.End).Format(shortLayout))
}

func formatOperators(cfg core.ChatConfig, ops []core.Operator) string {
	m := msgs(cfg.Language)
	if len(ops) == 0 {
		return m.NoOperators
	}
	var b strings.Builder
	b.WriteString(m.Operators)
	for _, op := range ops {
		fmt.Fprintf(&b, "\n• %s (%d)", op.DisplayName, op.UserID)
	}
	return b.String()
}

func formatAdmins(cfg core.ChatConfig, admins []core.Admin) string {
	m := msgs(cfg.Language)
	if len(admins) == 0 {
		return m.NoAdmins
	}
	var b strings.Builder
	b.WriteString(m.Admins)
	for _, a := range admins {
		fmt.Fprintf(&b, "\n• %d → %s", a.UserID, localStamp(cfg, a.ExpireAt))
	}
	return b.String()
}
