package bot

// User-facing strings. The bot speaks Russian; keep every string here so
// handlers stay readable.
const (
	msgStart = "Привет! Я ассистент с долговременной памятью: запоминаю факты о тебе из разговора " +
		"и использую их, чтобы отвечать по делу.\n\n" +
		"Команды:\n" +
		"/hooks — что я о тебе помню\n" +
		"/personality — роль бота\n" +
		"/clean — стереть память и историю\n" +
		"/help — справка"

	msgHelp = "Просто пиши мне сообщения, я отвечаю и попутно запоминаю важное.\n\n" +
		"/start — приветствие\n" +
		"/hooks — список запомненных фактов\n" +
		"/personality — посмотреть или изменить роль бота\n" +
		"/clean — стереть все факты и историю разговора\n" +
		"/debug — служебная информация\n" +
		"/help — эта справка"

	msgHooksEmpty  = "Пока я ничего о тебе не запомнил."
	msgHooksHeader = "Вот что я помню:\n"

	msgPersonalityNone   = "Роль не задана. Я отвечаю нейтрально."
	msgPersonalityHeader = "Текущая роль:\n"
	msgPersonalityAsk    = "Напиши новую роль одним сообщением (например: «Ты строгий редактор, отвечай кратко»)."
	msgPersonalitySaved  = "Роль сохранена."
	msgPersonalityReset  = "Роль сброшена."

	msgCleanDone  = "Готово. Удалено фактов: %d. История разговора очищена."
	msgCleanEmpty = "Память и так пуста. История разговора очищена."

	btnPersonalityEdit  = "Изменить"
	btnPersonalityClear = "Сбросить"

	callbackPersonalityEdit  = "personality:edit"
	callbackPersonalityClear = "personality:clear"
)
