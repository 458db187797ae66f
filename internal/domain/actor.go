package domain

// Actor — кто инициировал переход или событие.
type Actor string

const (
	ActorWorker    Actor = "worker"
	ActorUser      Actor = "user"
	ActorAdmin     Actor = "admin"
	ActorWebhook   Actor = "webhook"
	ActorScheduler Actor = "scheduler"
	ActorSystem    Actor = "system"
)

// Valid возвращает true, если actor входит в словарь.
func (a Actor) Valid() bool {
	switch a {
	case ActorWorker, ActorUser, ActorAdmin, ActorWebhook, ActorScheduler, ActorSystem:
		return true
	default:
		return false
	}
}

// AllActors возвращает все значения словаря.
func AllActors() []Actor {
	return []Actor{ActorWorker, ActorUser, ActorAdmin, ActorWebhook, ActorScheduler, ActorSystem}
}
