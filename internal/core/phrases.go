package core

// DefaultCenterPhrase is the free-space goal placed in the middle cell.
const DefaultCenterPhrase = "アポ獲得"

// DefaultPhrases are the customer objections a caller collects on the board.
var DefaultPhrases = []string{
	"今忙しいので",
	"興味ないです",
	"資料だけ送って",
	"担当者が不在です",
	"他社で間に合ってます",
	"予算がないです",
	"また今度で",
	"どこで番号を知ったの？",
	"検討します",
	"上に確認します",
	"営業電話はお断り",
	"メールでお願いします",
}

// DefaultQuotes are shown when calls are added to the monthly goal.
var DefaultQuotes = []string{
	"諦めたらそこで試合終了ですよ",
	"一歩ずつでいい、前に進め！",
	"努力は必ず報われる！",
	"限界を決めるのは自分自身だ",
	"今日の一本が明日の成果になる",
}

// Picker selects an index in [0, n). *math/rand/v2.Rand satisfies it.
type Picker interface {
	IntN(n int) int
}

// PickQuote returns a random quote, or "" for an empty list.
func PickQuote(quotes []string, rng Picker) string {
	if len(quotes) == 0 {
		return ""
	}
	return quotes[rng.IntN(len(quotes))]
}
