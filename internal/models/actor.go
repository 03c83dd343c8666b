package models

// Actor identifies who performs an operation. It is supplied by the caller
// and is either Authenticated or Anonymous.
type Actor interface {
	isActor()
}

// Authenticated is a registered, logged-in actor.
type Authenticated struct {
	ID    uint
	Name  string
	Email string
	Admin bool
}

// Anonymous is a reader without an account; identity fields come from the
// submitted form.
type Anonymous struct {
	Name    string
	Email   string
	Website string
}

func (Authenticated) isActor() {}
func (Anonymous) isActor()     {}

// AsAuthenticated returns the actor as Authenticated if it is one.
func AsAuthenticated(a Actor) (Authenticated, bool) {
	switch v := a.(type) {
	case Authenticated:
		return v, true
	case *Authenticated:
		if v != nil {
			return *v, true
		}
	}
	return Authenticated{}, false
}

// RequestMeta is captured at submission time for abuse analysis.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}
