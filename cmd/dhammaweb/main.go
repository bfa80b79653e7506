/*
AUTHORS
  Pritam Bhaladhare <pritam@buddhadham.org>

LICENSE
  Copyright (C) 2025-2026 the Buddhadham Foundation.

  This file is part of the Buddhadham web service. It is free
  software: you can redistribute it and/or modify it under the terms
  of the GNU General Public License as published by the Free Software
  Foundation, either version 3 of the License, or (at your option)
  any later version.

  It is distributed in the hope that it will be useful,
  but WITHOUT ANY WARRANTY; without even the implied warranty of
  MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
  GNU General Public License for more details.

  You should have received a copy of the GNU General Public License
  in gpl.txt. If not, see http://www.gnu.org/licenses/.
*/

// Dhammaweb is the cloud service backing the Buddhadham website:
// membership, donations, newsletter and volunteer management.
package main

import (
	"context"
	"crypto/sha256"
	"flag"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gorilla/securecookie"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/buddhadham/cloud/datastore"
	"github.com/buddhadham/cloud/gauth"
	"github.com/buddhadham/cloud/notify"
)

// Project constants.
const (
	projectID = "buddhadham"
	version   = "v1.2.0"
)

// service defines the properties of our web service.
type service struct {
	setupMutex    sync.Mutex
	store         datastore.Store
	auth          *gauth.OAuth2 // Nil unless Google sign-in is configured.
	notifier      *notify.Notifier
	codec         *securecookie.SecureCookie
	validate      *validator.Validate
	cron          *cron.Cron
	stripeEnabled bool
	debug         bool
	standalone    bool
	development   bool
}

// app is an instance of our service.
var app *service = &service{}

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Debugf("no .env file loaded: %v", err)
	}

	defaultPort := 8080
	v := os.Getenv("PORT")
	if v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			defaultPort = i
		}
	}

	v = os.Getenv("DEVELOPMENT")
	if v != "" {
		app.development = true
	}

	var host string
	var port int
	flag.BoolVar(&app.debug, "debug", false, "Run in debug mode.")
	flag.BoolVar(&app.standalone, "standalone", false, "Run in standalone mode.")
	flag.StringVar(&host, "host", "localhost", "Host we run on in standalone mode")
	flag.IntVar(&port, "port", defaultPort, "Port we listen on in standalone mode")
	flag.Parse()

	// Set the logging level.
	if app.debug {
		log.SetLevel(log.LevelDebug)
	} else if app.standalone {
		log.SetLevel(log.LevelInfo)
	} else {
		// Appengine logs requests for us.
		log.SetLevel(log.LevelError)
	}

	// Perform one-time setup or bail.
	ctx := context.Background()
	app.setup(ctx)

	f := newRouter(app)
	app.startCron()

	listenOn := fmt.Sprintf(":%d", port)
	if app.standalone {
		listenOn = fmt.Sprintf("%s:%d", host, port)
	}
	log.Infof("starting web server on %s", listenOn)
	log.Fatal(f.Listen(listenOn))
}

// newRouter creates the fiber app with its middleware and routes.
func newRouter(svc *service) *fiber.App {
	f := fiber.New(fiber.Config{ErrorHandler: errorHandler})

	// Recover from panics.
	f.Use(recover.New())

	// CORS middleware.
	f.Use(cors.New(cors.Config{
		AllowOrigins: "*",
	}))

	// Add logging middleware to log requests if applicable.
	f.Use(func(c *fiber.Ctx) error {
		log.Debug(c.Method() + " " + c.Path())
		return c.Next()
	})

	registerAPIRoutes(f, svc)
	return f
}

// registerAPIRoutes registers all of the routes of the service under
// the /api prefix. The /members/user route must precede /members/:id
// so that "user" is not captured as an id.
func registerAPIRoutes(f *fiber.App, svc *service) {
	v1 := f.Group("/api")

	v1.Get("/version", svc.versionHandler)

	auth := v1.Group("/auth")
	auth.Post("/register", svc.registerHandler)
	auth.Post("/login", svc.loginHandler)
	auth.Post("/logout", svc.logoutHandler)
	auth.Get("/me", svc.meHandler)
	if svc.auth != nil {
		auth.Get("/google", svc.googleLoginHandler)
		auth.Get("/google/callback", svc.googleCallbackHandler)
	}

	v1.Post("/contact/send", svc.contactHandler)
	v1.Post("/newsletter/subscribe", svc.subscribeHandler)
	v1.Post("/donations/custom", svc.donateHandler)
	v1.Post("/volunteer/apply", svc.volunteerHandler)

	// Administrative review of the append-only collections.
	v1.Get("/contact-messages", svc.listContactMessagesHandler)
	v1.Get("/newsletter-subscriptions", svc.listNewslettersHandler)
	v1.Get("/donations", svc.listDonationsHandler)
	v1.Get("/volunteer-applications", svc.listVolunteersHandler)

	v1.Get("/members", svc.listMembersHandler)
	v1.Post("/members", svc.createMemberHandler)
	v1.Get("/members/user/:userId", svc.getMemberByUserHandler)
	v1.Get("/members/:id", svc.getMemberHandler)
	v1.Patch("/members/:id", svc.updateMemberHandler)

	v1.Get("/member-benefits", svc.listBenefitsHandler)
	v1.Get("/member-benefits/level/:level", svc.listBenefitsByLevelHandler)
	v1.Post("/member-benefits", svc.createBenefitHandler)
	v1.Patch("/member-benefits/:id", svc.updateBenefitHandler)

	v1.Get("/members/:memberId/donations", svc.listPledgesHandler)
	v1.Post("/members/:memberId/donations", svc.createPledgeHandler)
	v1.Get("/member-donations/:id", svc.getPledgeHandler)
	v1.Patch("/member-donations/:id", svc.updatePledgeHandler)

	v1.Get("/members/:memberId/payments", svc.listPaymentsHandler)
	v1.Post("/members/:memberId/payments", svc.createPaymentHandler)
	v1.Get("/member-payments/:id", svc.getPaymentHandler)

	if svc.stripeEnabled {
		v1.Post("/stripe/webhook", svc.handleStripeWebhook)
	}
}

// versionHandler handles requests for the service version.
func (svc *service) versionHandler(c *fiber.Ctx) error {
	c.WriteString(projectID + " " + version)
	return nil
}

// setup executes per-instance one-time warmup and is used to
// initialize the service. A missing datastore or session secret is
// fatal; mail, Google sign-in and Stripe degrade to disabled.
func (svc *service) setup(ctx context.Context) {
	svc.setupMutex.Lock()
	defer svc.setupMutex.Unlock()

	if svc.store != nil {
		return
	}

	var err error
	kind := "cloud"
	if svc.standalone {
		log.Info("running in standalone mode")
		kind = "memory"
	}
	svc.store, err = datastore.NewStore(ctx, kind, projectID, "")
	if err != nil {
		log.Fatalf("could not set up datastore: %v", err)
	}
	log.Info("set up datastore")

	// Session cookie codec. The secret signs the session cookie; a
	// derived key encrypts it.
	secret, err := gauth.GetSecret(ctx, projectID, "SESSION_SECRET")
	if err != nil {
		if !svc.standalone {
			log.Fatalf("unable to get SESSION_SECRET: %v", err)
		}
		log.Warn("SESSION_SECRET not set; sessions will not survive restarts")
		secret = string(securecookie.GenerateRandomKey(32))
	}
	blockKey := sha256.Sum256([]byte(secret))
	svc.codec = securecookie.New([]byte(secret), blockKey[:])

	svc.validate = validator.New()

	// Notifier. Without mail credentials Send logs but does not mail.
	svc.notifier = &notify.Notifier{}
	opts := []notify.Option{notify.WithStore(notify.NewTimeStore(notifyPeriod))}
	mailSecrets, err := gauth.GetSecrets(ctx, projectID, []string{"EMAIL_USER", "EMAIL_PASSWORD"})
	if err != nil {
		log.Warnf("mail secrets not found, emails will not be sent: %v", err)
	} else {
		opts = append(opts, notify.WithSecrets(map[string]string{
			"mailjetPublicKey":  mailSecrets["EMAIL_USER"],
			"mailjetPrivateKey": mailSecrets["EMAIL_PASSWORD"],
		}))
	}
	err = svc.notifier.Init(opts...)
	if err != nil {
		log.Fatalf("could not initialize notifier: %v", err)
	}

	// Google sign-in, enabled only when credentials are configured.
	oauthSecrets, err := gauth.GetSecrets(ctx, projectID, []string{"GOOGLE_CLIENT_ID", "GOOGLE_CLIENT_SECRET"})
	if err != nil {
		log.Warnf("oauth secrets not found, Google sign-in disabled: %v", err)
	} else {
		base := os.Getenv("BASE_URL")
		if base == "" {
			base = fmt.Sprintf("https://%s.appspot.com", projectID)
		}
		svc.auth = gauth.NewOAuth2(
			oauthSecrets["GOOGLE_CLIENT_ID"],
			oauthSecrets["GOOGLE_CLIENT_SECRET"],
			base+"/api/auth/google/callback",
			[]byte(secret),
		)
		log.Info("set up Google sign-in")
	}

	svc.setupStripe(ctx)
}
