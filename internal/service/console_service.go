package service

import (
	"fmt"
	"time"

	"github.com/gorcon/rcon"
)

// ConsoleService opens short-lived RCON connections to the game server
// process. Connections are per-call: the panel polls, it does not hold a
// session open.
type ConsoleService struct {
	host        string
	dialTimeout time.Duration
}

func NewConsoleService() *ConsoleService {
	return &ConsoleService{
		host:        "localhost",
		dialTimeout: 5 * time.Second,
	}
}

// Execute sends one command and returns the textual response
func (s *ConsoleService) Execute(port int, password, command string) (string, error) {
	conn, err := rcon.Dial(
		fmt.Sprintf("%s:%d", s.host, port),
		password,
		rcon.SetDialTimeout(s.dialTimeout),
		rcon.SetDeadline(s.dialTimeout),
	)
	if err != nil {
		return "", fmt.Errorf("RCON connection failed: %w", err)
	}
	defer conn.Close()

	response, err := conn.Execute(command)
	if err != nil {
		return "", fmt.Errorf("RCON command failed: %w", err)
	}
	return response, nil
}
