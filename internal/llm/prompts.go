package llm

import (
	"fmt"
	"strings"
)

// ManageHooksToolName is the function the extraction oracle is asked to
// call with its mutation proposal.
const ManageHooksToolName = "manage_user_memory_hooks"

// ManageHooksToolDescription documents the tool for the oracle.
const ManageHooksToolDescription = "Добавляет, обновляет или удаляет факты (хуки) о пользователе на основе анализа сообщения. " +
	"Используется для поддержания актуальной информации о пользователе. " +
	"Если пользователь выражает пожелания к стилю общения (например, 'пиши покороче', 'можно на ты', 'отвечай сухо'), запоминай это как отдельный хук. " +
	"Извлекай не только факты, но и события, перемены, отношения, эмоции, если они важны для понимания пользователя " +
	"(например, 'кот переехал к родителям', 'я начал заниматься HTML', 'я стал чаще гулять')."

// Messages collects fixed user-visible strings produced by the LLM layer.
var Messages = struct {
	FallbackReply string
	InternalError string
}{
	FallbackReply: "[Не удалось сгенерировать ответ.]",
	InternalError: "[Внутренняя ошибка бота. Попробуйте позже или обратитесь к администратору.]",
}

const proposalJSONInstruction = `Если нужно изменить память, ответь одним компактным JSON-объектом без пояснений и без Markdown:
{"hooks_to_add":[{"text":"...","expires_at":null}],"hooks_to_update":[{"old_hook_text":"...","new_hook_text":"...","expires_at":null}],"hooks_to_delete":["..."]}
Поле expires_at — строка ISO-8601 (например "2025-01-01T00:00:00Z") или null.
Если запоминать нечего, ответь ровно: {}`

// BuildExtractionSystemPrompt builds the system instruction for the
// extraction oracle.
func BuildExtractionSystemPrompt(existingHooks []string, personality string) string {
	var prompt strings.Builder
	prompt.WriteString("Ты — ядро памяти ассистента. Твоя задача — анализировать сообщение пользователя в контексте ")
	prompt.WriteString("фактов, которые ты уже знаешь о нём (existing_hooks). На основе нового сообщения решай, нужно ли ")
	prompt.WriteString("добавить, обновить или удалить какие-либо факты, чтобы профиль пользователя был актуальным. ")
	prompt.WriteString("Вызывай функцию " + ManageHooksToolName + " для выполнения этих действий. ")
	prompt.WriteString("Не вызывай функцию, если сообщение является простым вопросом, общей командой или не содержит ")
	prompt.WriteString("новой или обновлённой личной информации, которую стоит запомнить. ")
	prompt.WriteString("Если пользователь явно или неявно выражает пожелания к стилю общения (например, 'пиши покороче', 'можно на ты', 'отвечай сухо'), запоминай это как отдельный хук. ")
	prompt.WriteString("Если пользователь сообщает о событиях, изменениях, перемещениях, новых отношениях, эмоциях (например, 'кот переехал к родителям', 'я начал заниматься HTML', 'я стал чаще гулять'), обязательно добавляй это как отдельный хук. ")
	prompt.WriteString("Пример: из сообщения 'Какой выбрать корм для стерилизованного кота 1.5 года?' извлеки три факта: 'У пользователя есть кот', 'Кот стерилизован', 'Коту 1.5 года'. ")
	prompt.WriteString("Если факт действителен ограниченное время (отпуск, командировка, дедлайн), указывай expires_at в формате ISO-8601.")

	if personality != "" {
		prompt.WriteString("\n\nРоль пользователя для контекста: ")
		prompt.WriteString(personality)
	}

	prompt.WriteString("\n\nВот известные на данный момент факты о пользователе: ")
	prompt.WriteString(formatHookList(existingHooks))

	return prompt.String()
}

// BuildExtractionTextPrompt appends the compact-JSON output contract; used
// by providers without native function calling.
func BuildExtractionTextPrompt(existingHooks []string, personality string) string {
	return BuildExtractionSystemPrompt(existingHooks, personality) + "\n\n" + proposalJSONInstruction
}

// BuildReplySystemPrompt builds the system instruction for reply
// generation.
func BuildReplySystemPrompt(existingHooks []string, personality string) string {
	var prompt strings.Builder
	prompt.WriteString("Ты — ассистент. Вот что ты знаешь о пользователе: ")
	prompt.WriteString(formatHookList(existingHooks))
	prompt.WriteString(" Используй эти факты для персонализации ответа, но только когда они действительно относятся к вопросу. ")
	prompt.WriteString("Если в памяти есть пожелания пользователя к стилю общения, обязательно учитывай их. ")

	if personality != "" {
		prompt.WriteString("\n\nРоль, заданная пользователем: ")
		prompt.WriteString(personality)
		prompt.WriteString("\nСтрого придерживайся этой роли в ответах.")
	} else {
		prompt.WriteString("Не придумывай свою личность — твой стиль должен формироваться только на основе памяти о пользователе.")
	}

	return prompt.String()
}

func formatHookList(hooks []string) string {
	if len(hooks) == 0 {
		return "Пока ничего не известно."
	}

	var b strings.Builder
	for i, h := range hooks {
		if i > 0 {
			b.WriteString("; ")
		}
		fmt.Fprintf(&b, "%d) %s", i+1, h)
	}
	return b.String()
}
