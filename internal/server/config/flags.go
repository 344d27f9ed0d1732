package config

import (
	"flag"
	"os"
	"time"

	"github.com/dvoloshins/burnnote/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-t int      delete grace period, seconds
//	-m int      request body cap, megabytes
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-r string   S3 region
//	-e string   S3 base endpoint (empty disables attachment offloading)
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components.
func parseFlags(config *Config) {
	// Filter args to include only the flags handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-t", "-m", "-u", "-p", "-b", "-r", "-e"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")

	deleteGracePeriod := fs.Int("t", int(config.DeleteGracePeriod.Seconds()), "delete_grace_period (in seconds)")
	maxBodyMB := fs.Int64("m", config.MaxRequestBodyBytes>>20, "max request body size (in megabytes)")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "r", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.DeleteGracePeriod = time.Duration(*deleteGracePeriod) * time.Second
	config.MaxRequestBodyBytes = *maxBodyMB << 20
}
