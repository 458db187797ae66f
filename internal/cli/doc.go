// Package cli реализует инструмент командной строки Listopad.
//
// CLI — клиентская утилита для взаимодействия с Listopad API.
// Работает через HTTP, не импортирует внутренние пакеты системы.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для Listopad API. Инкапсулирует HTTP-запросы,
// парсинг ответов (DataResponse, ListResponse, ErrorResponse)
// и обработку ошибок.
//
//	client := cli.NewClient("http://localhost:8080")
//	targets, err := client.ListTargets(cli.ListTargetsOpts{})
//
// ## Output
//
// Форматирование вывода: таблицы (text/tabwriter) по умолчанию,
// JSON с флагом --json. Данные идут в stdout, сообщения — в stderr,
// поэтому вывод можно прогонять через pipe:
//
//	listopad target list --json | jq .
//
// ## Commands
//
// Cobra-команды организованы по ресурсам:
//   - target: list, create, show, runs
//   - run: show, events, lineage, ack, retry, cancel, pause, resume, artifacts
//   - directory: list
//
// Каждая группа создаётся через фабричную функцию (NewTargetCmd и т.д.),
// принимающую clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
