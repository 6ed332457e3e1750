// cmd/devtoken/main.go
//
// devtoken issues session tokens for local testing. Run with -keygen once to
// write a key pair, point AUTH_PRIVATE_KEY_PATH/AUTH_PUBLIC_KEY_PATH at it, then
// mint tokens for any identity.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/primepickle/courtside/internal/auth"
	"github.com/primepickle/courtside/internal/config"
	"github.com/primepickle/courtside/internal/models"
	"github.com/sirupsen/logrus"
)

func main() {
	keygen := flag.Bool("keygen", false, "write a new key pair to -priv/-pub and exit")
	priv := flag.String("priv", "", "private key path (defaults to AUTH_PRIVATE_KEY_PATH)")
	pub := flag.String("pub", "", "public key path (defaults to AUTH_PUBLIC_KEY_PATH)")
	sub := flag.String("sub", "", "profile id; a random one is used when empty")
	role := flag.String("role", string(models.RolePlayer), "player or organizer")
	name := flag.String("name", "", "display name")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	if *priv == "" {
		*priv = cfg.AuthPrivateKeyPath
	}
	if *pub == "" {
		*pub = cfg.AuthPublicKeyPath
	}
	if *priv == "" || *pub == "" {
		logrus.Fatal("key paths are required: pass -priv and -pub or set AUTH_PRIVATE_KEY_PATH and AUTH_PUBLIC_KEY_PATH")
	}

	if *keygen {
		if err := auth.WriteKeyFiles(*priv, *pub); err != nil {
			logrus.Fatal(err)
		}
		logrus.Infof("wrote %s and %s", *priv, *pub)
		return
	}

	id := models.Identity{Role: models.Role(*role), DisplayName: *name}
	if !id.Role.Valid() {
		logrus.Fatalf("invalid role %q", *role)
	}
	if *sub == "" {
		id.ID = uuid.New()
	} else if id.ID, err = uuid.Parse(*sub); err != nil {
		logrus.Fatalf("invalid -sub: %v", err)
	}

	if err := auth.InitFromPath(*priv, *pub); err != nil {
		logrus.Fatal(err)
	}
	auth.SetTokenExpiry(cfg.TokenExpiry)
	token, err := auth.CreateJWT(id)
	if err != nil {
		logrus.Fatal(err)
	}
	fmt.Fprintln(os.Stdout, token)
}
