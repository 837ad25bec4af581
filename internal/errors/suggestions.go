package errors

import "fmt"

// ============================================================================
// 修复建议
// ============================================================================

// maxSuggestDistance 拼写建议允许的最大编辑距离
const maxSuggestDistance = 2

// DidYouMean 在候选名称中找出与 name 最接近的一个
//
// 编辑距离超过 maxSuggestDistance 或没有候选时返回空串。
func DidYouMean(name string, candidates []string) string {
	best, bestDist := "", maxSuggestDistance+1
	for _, c := range candidates {
		if c == name {
			continue
		}
		if d := levenshtein(name, c); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

// GetSuggestions 根据错误码生成通用建议
//
// similar 是拼写建议（可为空）。
func GetSuggestions(code, similar string) []string {
	var hints []string
	if similar != "" {
		hints = append(hints, fmt.Sprintf("did you mean '%s'?", similar))
	}
	switch code {
	case E0100:
		hints = append(hints, "declare the variable before using it")
	case E0101:
		hints = append(hints, "rename one of the variables")
	case E0208:
		hints = append(hints, "add a return statement at the end of the method")
	case E0304, E0305:
		hints = append(hints, "move the statement inside a loop body")
	case E0307:
		hints = append(hints, "declare the method static")
	case L0001:
		hints = append(hints, "rewrite the method using int or long arithmetic")
	case L0004:
		hints = append(hints, "split the method or raise lower.max_slots")
	case R0200:
		hints = append(hints, "check the divisor before dividing")
	case R0100:
		hints = append(hints, "check the index against the array length")
	}
	return hints
}

// levenshtein 计算两个字符串的编辑距离
func levenshtein(a, b string) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min3(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
