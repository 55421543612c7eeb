// Package insights merges expert session notes with an LLM and renders the
// daily conference digest.
package insights

import (
	"regexp"
	"strings"
)

const mergeInsightsPrompt = `下面我有一些专家们对AI学术会议内容的总结，请将这些内容全部融合在一起，可以去除冗余但不要遗漏任何信息！！
请注意以下要求：
1.请以纯粹的字符串形式返回结果（不要使用json格式，不要用双引号包裹）
2.不要添加任何额外的解释和描述
`

const dailyHighlightsPrompt = `下面是每日参会快报，请根据每日参会快报生成一个每日精选内容
请注意以下要求：
1.大标题为：每日精选内容
2.精选内容按照主题进行分类
3.输出尽量精简且只输出核心内容
4.将输出结果按照markdown格式返回
5.markdown里不要使用任何的列表形式呈现内容，只能使用段落形式并使用#号进行标题的划分
6.不要添加任何额外的解释和描述
`

// Replacement rewrites one term before text is sent to a model.
type Replacement struct {
	From       string `yaml:"from" json:"from"`
	To         string `yaml:"to" json:"to"`
	IgnoreCase bool   `yaml:"ignore_case" json:"ignore_case"`
}

// DefaultReplacements anonymizes the sponsoring company in prompts.
func DefaultReplacements() []Replacement {
	return []Replacement{
		{From: "华为", To: "企业"},
		{From: "Huawei", To: "company", IgnoreCase: true},
	}
}

// PreprocessPrompt applies terms in order.
func PreprocessPrompt(text string, terms []Replacement) string {
	for _, r := range terms {
		if r.From == "" {
			continue
		}
		if r.IgnoreCase {
			re := regexp.MustCompile("(?i)" + regexp.QuoteMeta(r.From))
			text = re.ReplaceAllLiteralString(text, r.To)
			continue
		}
		text = strings.ReplaceAll(text, r.From, r.To)
	}
	return text
}
