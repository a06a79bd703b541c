package score

var defaultStopWords = toSet(
	// English
	"a", "an", "the", "is", "are", "was", "were", "be", "been", "being",
	"of", "in", "on", "at", "to", "for", "from", "by", "with", "about",
	"and", "or", "but", "not", "no", "nor", "so", "if", "than", "then",
	"that", "this", "these", "those", "it", "its", "as", "into", "over",
	"has", "have", "had", "do", "does", "did", "will", "would", "can",
	"could", "should", "may", "might", "must", "shall", "i", "you", "he",
	"she", "we", "they", "them", "his", "her", "their", "our", "my",
	"what", "which", "who", "whom", "when", "where", "why", "how",
	"true", "false", "really", "claim", "claims", "said", "says",

	// Korean
	"이", "그", "저", "것", "수", "등", "및", "또", "더", "잘",
	"은", "는", "이", "가", "을", "를", "의", "에", "에서", "로",
	"으로", "와", "과", "도", "만", "까지", "부터", "에게", "한테",
	"하다", "한다", "했다", "하는", "있다", "있는", "없다", "없는",
	"이다", "아니다", "된다", "됐다", "되는", "라고", "이라고", "라는",
	"대한", "대해", "관련", "통해", "위해", "그리고", "하지만", "그러나",
	"또한", "정말", "진짜", "사실", "사실인가", "사실인가요", "맞나요", "맞다",
	"인가", "인가요", "입니까", "합니다", "했습니다", "있습니다",
)

// particles are Korean postpositions, longest first
var particles = []string{
	"에서는", "으로는", "에게서", "이라는", "이라고",
	"에서", "으로", "에게", "한테", "까지", "부터", "처럼", "보다", "라는", "라고", "이나", "에는", "와의", "과의",
	"은", "는", "이", "가", "을", "를", "의", "에", "로", "와", "과", "도", "만",
}

func toSet(words ...string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}
