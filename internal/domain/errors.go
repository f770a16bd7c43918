package domain

type ErrorKind int

const (
	TransportError ErrorKind = iota + 1
	ValidationError
	UnavailableError
)

func (k ErrorKind) String() string {
	switch k {
	case TransportError:
		return "transport"
	case ValidationError:
		return "validation"
	case UnavailableError:
		return "unavailable"
	default:
		return "unknown"
	}
}
