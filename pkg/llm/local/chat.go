package local

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/kart-io/linkvault/pkg/llm"
)

const (
	contextPrefix = "Context:\n"
	minBudget     = 100
	fallbackReply = "I don't have enough information to answer that."
)

var limitPattern = regexp.MustCompile(`no longer than (\d+) characters`)

// Generator 抽取式生成器。
// 问答时从上下文中挑选与问题重合度最高的句子；
// 改写时（没有用户消息）压缩提示词中最长的段落。
type Generator struct{}

// Chat 生成回答。返回值不回显提示词。
func (g *Generator) Chat(ctx context.Context, messages []llm.Message, opts llm.GenerateOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	budget := minBudget
	if opts.MaxLength > 0 {
		budget = max(opts.MaxLength-len([]rune(llm.PromptText(messages))), minBudget)
	}

	question, contextText, hasUser := split(messages)
	if !hasUser {
		return rewrite(llm.PromptText(messages), budget), nil
	}

	answer := extract(contextText, tokens(question), budget)
	if answer == "" {
		return fallbackReply, nil
	}
	return answer, nil
}

func split(messages []llm.Message) (question, contextText string, hasUser bool) {
	var ctxParts []string
	for _, m := range messages {
		switch m.Role {
		case llm.RoleUser:
			question, hasUser = m.Content, true
		case llm.RoleSystem:
			if strings.HasPrefix(m.Content, contextPrefix) {
				ctxParts = append(ctxParts, strings.TrimPrefix(m.Content, contextPrefix))
			}
		}
	}
	return question, strings.Join(ctxParts, "\n"), hasUser
}

// rewrite 压缩最长段落到提示词声明的字符上限以内。
func rewrite(prompt string, budget int) string {
	limit := budget
	if m := limitPattern.FindStringSubmatch(prompt); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			limit = n
		}
	}

	var longest string
	for _, p := range strings.Split(prompt, "\n\n") {
		if len(p) > len(longest) {
			longest = p
		}
	}
	return extract(longest, nil, limit)
}

// extract 按得分挑选句子，保持原文顺序，总长度不超过 budget 个字符。
// query 为空时按词频打分。
func extract(text string, query []string, budget int) string {
	sents := sentences(text)
	if len(sents) == 0 {
		return ""
	}

	weights := make(map[string]float64)
	if len(query) > 0 {
		for _, q := range query {
			weights[q] = 1
		}
	} else {
		var maxF float64
		for _, s := range sents {
			for _, tok := range tokens(s) {
				weights[tok]++
				maxF = math.Max(maxF, weights[tok])
			}
		}
		for k, v := range weights {
			weights[k] = v / maxF
		}
	}

	type scored struct {
		idx   int
		score float64
	}
	ranked := make([]scored, len(sents))
	for i, s := range sents {
		toks := tokens(s)
		var score float64
		for _, tok := range toks {
			score += weights[tok]
		}
		if len(toks) > 0 {
			score /= math.Sqrt(float64(len(toks)))
		}
		ranked[i] = scored{idx: i, score: score}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	if len(query) > 0 && ranked[0].score == 0 {
		return ""
	}

	var selected []int
	used := 0
	for _, r := range ranked {
		if len(query) > 0 && r.score == 0 {
			break
		}
		n := len([]rune(sents[r.idx]))
		if used > 0 && used+1+n > budget {
			continue
		}
		selected = append(selected, r.idx)
		used += n + 1
		if used >= budget {
			break
		}
	}
	sort.Ints(selected)

	parts := make([]string, len(selected))
	for i, idx := range selected {
		parts[i] = sents[idx]
	}
	return truncateRunes(strings.Join(parts, " "), budget)
}
