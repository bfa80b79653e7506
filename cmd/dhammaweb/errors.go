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

package main

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
)

// errorHandler is the fiber error handler, translating any error that
// escapes a handler into the standard {success, message} body.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{"success": false, "message": err.Error()})
}

type loggingErrorOption func(c *fiber.Ctx, kv fiber.Map) error

// withStatus sets the status of the response.
func withStatus(status int) loggingErrorOption {
	return func(c *fiber.Ctx, kv fiber.Map) error {
		c.Status(status)
		return nil
	}
}

// logAndReturnError logs the passed message as an error and returns a
// response to the client. The response code defaults to internal
// server error (500).
func logAndReturnError(c *fiber.Ctx, message string, opts ...loggingErrorOption) error {
	log.Error(message)
	c.Status(fiber.StatusInternalServerError)
	kv := fiber.Map{"success": false, "message": message}
	for i, opt := range opts {
		err := opt(c, kv)
		if err != nil {
			log.Errorf("error applying opt[%d]: %v", i, err)
		}
	}
	return c.JSON(kv)
}

// created responds 201 with the given record under the data key.
func created(c *fiber.Ctx, record any) error {
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": record})
}

// ok responds 200 with the given record under the data key.
func ok(c *fiber.Ctx, record any) error {
	return c.JSON(fiber.Map{"success": true, "data": record})
}
