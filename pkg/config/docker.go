package config

import (
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
)

// DockerHostGateway is the name a container uses to reach its host machine.
const DockerHostGateway = "host.docker.internal"

var (
	inDockerOnce   sync.Once
	inDockerResult bool
)

// InDocker reports whether the advisor runs inside a Docker container,
// detected once through /.dockerenv.
func InDocker() bool {
	inDockerOnce.Do(func() {
		_, err := os.Stat("/.dockerenv")
		inDockerResult = err == nil
	})
	return inDockerResult
}

// ResolveAddress returns the host:port an introspection adapter should dial.
// Inside Docker a loopback host (localhost, 127.0.0.0/8, ::1) points at the
// container itself, so it is replaced with DockerHostGateway to reach a
// database published on the host. IPv6 literals may be given with or without
// brackets and come back bracketed.
func ResolveAddress(host string, port int) string {
	return resolveAddress(host, port, InDocker())
}

func resolveAddress(host string, port int, inDocker bool) string {
	host = strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(host), "["), "]")
	if inDocker && isLoopback(host) {
		host = DockerHostGateway
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

func isLoopback(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
