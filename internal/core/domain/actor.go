package domain

type ActorKind uint8

const (
	ActorKindUnknown ActorKind = iota
	ActorKindSystem
	ActorKindUser
)

// Actor identifies who performed a stock movement.
type Actor struct {
	Kind   ActorKind
	UserID string // set only for ActorKindUser
}

func UserActor(id string) Actor {
	return Actor{Kind: ActorKindUser, UserID: id}
}

func SystemActor() Actor {
	return Actor{Kind: ActorKindSystem}
}

func UnknownActor() Actor {
	return Actor{Kind: ActorKindUnknown}
}

func (a Actor) String() string {
	switch a.Kind {
	case ActorKindUser:
		return "user:" + a.UserID
	case ActorKindSystem:
		return "system"
	default:
		return "unknown"
	}
}
