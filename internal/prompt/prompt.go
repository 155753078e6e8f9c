// Package prompt builds the LLM prompts used for grounded question
// answering. Templates are bilingual and written for rural users, so the
// instructions push the model toward plain, example-driven Hindi.
package prompt

import (
	"fmt"
	"sort"
	"strings"
)

const ragPromptHindi = `तुम एक ग्रामीण सहायक बॉट हो जो गाँव के लोगों को बैंकिंग और सरकारी योजनाओं के बारे में सरल हिंदी में समझाता है।

**नियम:**
1. बहुत ही सरल और आसान भाषा का उपयोग करो
2. तकनीकी शब्दों को सरल शब्दों में समझाओ
3. उदाहरण देकर समझाओ
4. केवल दिए गए संदर्भ (Context) की जानकारी का उपयोग करो
5. अगर जानकारी नहीं है तो साफ़-साफ़ बताओ
6. 3-4 वाक्यों में जवाब दो (जब तक ज्यादा विस्तार न माँगा जाए)

**संदर्भ (Context):**
%s

**प्रश्न:**
%s

**जवाब (सरल हिंदी में):**`

const ragPromptEnglish = `You are Gramin Sahayak, a helpful assistant for rural users explaining banking and government schemes in simple language.

**Rules:**
1. Use very simple language
2. Explain technical terms in easy words
3. Give examples
4. Only use information from the given Context
5. If information is not available, clearly state that
6. Keep answer to 3-4 sentences (unless more detail is requested)

**Context:**
%s

**Question:**
%s

**Answer (in simple language):**`

const schemePrompt = `नीचे दी गई जानकारी के आधार पर "%s" योजना को बहुत ही सरल हिंदी में समझाओ।

**जानकारी:**
%s

**निम्नलिखित बिंदुओं को शामिल करो:**
1. यह योजना क्या है? (1 वाक्य)
2. यह किसके लिए है? (पात्रता)
3. कितना लोन मिल सकता है?
4. ब्याज दर क्या है?
5. कैसे आवेदन करें?

**जवाब (सरल हिंदी में, गाँव के व्यक्ति को समझाने के लिए):**`

const termPrompt = `"%s" का मतलब बहुत ही सरल हिंदी में समझाओ, जैसे किसी गाँव के व्यक्ति को समझा रहे हो।

**संदर्भ:**
%s

**नियम:**
1. एकदम आसान शब्दों में
2. रोजमर्रा की भाषा में
3. उदाहरण के साथ
4. 2-3 वाक्यों में

**जवाब:**`

const noContextPrompt = `प्रश्न: %s

दुर्भाग्य से, मेरे पास इस प्रश्न का जवाब देने के लिए पर्याप्त जानकारी नहीं है।

कृपया:
1. अपना प्रश्न थोड़ा अलग तरीके से पूछें, या
2. किसी सरकारी बैंक या योजना के नाम का उल्लेख करें, या
3. मुझे बताएं कि आप किस तरह की योजना खोज रहे हैं (किसान, व्यापार, महिला, आदि)

मैं आपकी मदद करने के लिए तैयार हूं! 🙏`

// RAG returns the grounded-answer prompt for the given language. Any
// language other than "english" gets the Hindi template.
func RAG(query, context, language string) string {
	if strings.EqualFold(language, "english") {
		return fmt.Sprintf(ragPromptEnglish, context, query)
	}
	return fmt.Sprintf(ragPromptHindi, context, query)
}

// SchemeExplanation returns the prompt for explaining a government scheme
// from retrieved context.
func SchemeExplanation(schemeName, context string) string {
	return fmt.Sprintf(schemePrompt, schemeName, context)
}

// TermExplanation returns the prompt for explaining a banking or financial
// term from retrieved context.
func TermExplanation(term, context string) string {
	return fmt.Sprintf(termPrompt, term, context)
}

// NoContext returns the fallback prompt used when retrieval found nothing
// relevant to the question.
func NoContext(query string) string {
	return fmt.Sprintf(noContextPrompt, query)
}

// FormatAnswerWithSources appends a source-attribution footer to an answer.
// Duplicate sources are collapsed; an empty source list returns the answer
// unchanged.
func FormatAnswerWithSources(answer string, sources []string) string {
	if len(sources) == 0 {
		return answer
	}

	seen := make(map[string]bool)
	var unique []string
	for _, s := range sources {
		if !seen[s] {
			seen[s] = true
			unique = append(unique, s)
		}
	}
	sort.Strings(unique)

	return fmt.Sprintf("%s\n\n📚 जानकारी का स्रोत: %s", answer, strings.Join(unique, ", "))
}
