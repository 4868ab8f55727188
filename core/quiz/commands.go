package quiz

import "fmt"

type CommandKind int

const (
	CommandUnrecognized CommandKind = iota
	CommandNavigate
	CommandSelectAnswer
	CommandSubmit
	CommandRepeat
)

func (k CommandKind) String() string {
	switch k {
	case CommandNavigate:
		return "navigate"
	case CommandSelectAnswer:
		return "select_answer"
	case CommandSubmit:
		return "submit"
	case CommandRepeat:
		return "repeat"
	default:
		return "unrecognized"
	}
}

type Direction int

const (
	Forward Direction = iota
	Backward
)

func (d Direction) String() string {
	if d == Backward {
		return "backward"
	}
	return "forward"
}

// Command is the result of interpreting one spoken utterance during a quiz.
type Command struct {
	Kind      CommandKind
	Direction Direction
	Answer    string
}

func Navigate(direction Direction) Command {
	return Command{Kind: CommandNavigate, Direction: direction}
}

func SelectAnswer(value string) Command {
	return Command{Kind: CommandSelectAnswer, Answer: value}
}

func Submit() Command       { return Command{Kind: CommandSubmit} }
func Repeat() Command       { return Command{Kind: CommandRepeat} }
func Unrecognized() Command { return Command{Kind: CommandUnrecognized} }

func (c Command) String() string {
	switch c.Kind {
	case CommandNavigate:
		return fmt.Sprintf("navigate(%s)", c.Direction)
	case CommandSelectAnswer:
		return fmt.Sprintf("select_answer(%q)", c.Answer)
	default:
		return c.Kind.String()
	}
}
