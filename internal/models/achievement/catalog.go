package achievement

// каталог ачивок; порядок фиксирован, чтобы серия разблокировок
// за одно событие шла по возрастанию порогов
var catalog = []Definition{
	{ID: "first_blood", Title: "Первая задача", Category: CategoryTasks, Threshold: 1},
	{ID: "task_10", Title: "Десятка", Category: CategoryTasks, Threshold: 10,
		Perk: &Perk{Kind: PerkMaxTasks, Value: 10}},
	{ID: "task_100", Title: "Сотня", Category: CategoryTasks, Threshold: 100,
		Perk: &Perk{Kind: PerkMaxTasks, Value: 50}},
	{ID: "task_1000", Title: "Тысячник", Category: CategoryTasks, Threshold: 1000,
		Perk: &Perk{Kind: PerkDailyAiCredits, Value: 10}},

	{ID: "streak_7", Title: "Неделя подряд", Category: CategoryStreak, Threshold: 7,
		Perk: &Perk{Kind: PerkDailyAiCredits, Value: 3}},
	{ID: "streak_30", Title: "Месяц подряд", Category: CategoryStreak, Threshold: 30,
		Perk: &Perk{Kind: PerkMaxTasks, Value: 30}},

	{ID: "focus_25", Title: "Фокусировка", Category: CategoryFocus, Threshold: 25,
		Perk: &Perk{Kind: PerkDailyAiCredits, Value: 5}},

	{ID: "notes_10", Title: "Конвертер", Category: CategoryNotes, Threshold: 10,
		Perk: &Perk{Kind: PerkMaxNotes, Value: 10}},
}

func Definitions() []Definition {
	out := make([]Definition, len(catalog))
	copy(out, catalog)
	return out
}

func DefinitionsByCategory(c Category) []Definition {
	out := []Definition{}
	for _, d := range catalog {
		if d.Category == c {
			out = append(out, d)
		}
	}
	return out
}

func DefinitionsByID() map[string]Definition {
	out := make(map[string]Definition, len(catalog))
	for _, d := range catalog {
		out[d.ID] = d
	}
	return out
}
