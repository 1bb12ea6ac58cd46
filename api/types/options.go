/*
 * Copyright 2023 The RuleGo Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package types

import (
	"time"
)

// Option is a function type that modifies the Config.
type Option func(*Config) error

// WithLogger is an option that sets the logger of the Config.
func WithLogger(logger Logger) Option {
	return func(c *Config) error {
		c.Logger = logger
		return nil
	}
}

// WithCatalog is an option that sets the node catalog of the Config.
func WithCatalog(catalog Catalog) Option {
	return func(c *Config) error {
		c.Catalog = catalog
		return nil
	}
}

// WithComponentsRegistry is an option that sets the components' registry of the Config.
func WithComponentsRegistry(componentsRegistry ComponentRegistry) Option {
	return func(c *Config) error {
		c.ComponentsRegistry = componentsRegistry
		return nil
	}
}

// WithStore is an option that sets the durable store of the Config.
func WithStore(store Store) Option {
	return func(c *Config) error {
		c.Store = store
		return nil
	}
}

// WithContacts is an option that sets the contact collaborator of the Config.
func WithContacts(contacts ContactService) Option {
	return func(c *Config) error {
		c.Contacts = contacts
		return nil
	}
}

// WithMessenger is an option that sets the messaging collaborator of the Config.
func WithMessenger(messenger Messenger) Option {
	return func(c *Config) error {
		c.Messenger = messenger
		return nil
	}
}

// WithRequester is an option that sets the outbound request collaborator of the Config.
func WithRequester(requester Requester) Option {
	return func(c *Config) error {
		c.Requester = requester
		return nil
	}
}

// WithPool is an option that sets the pool of the Config.
func WithPool(pool Pool) Option {
	return func(c *Config) error {
		c.Pool = pool
		return nil
	}
}

// WithClock is an option that replaces the clock, mostly for tests.
func WithClock(clock func() time.Time) Option {
	return func(c *Config) error {
		c.Clock = clock
		return nil
	}
}

// WithSweepInterval is an option that sets how often due continuations are resumed.
func WithSweepInterval(interval time.Duration) Option {
	return func(c *Config) error {
		c.SweepInterval = interval
		return nil
	}
}

// WithDebug is an option that enables dispatch logging.
func WithDebug(debug bool) Option {
	return func(c *Config) error {
		c.Debug = debug
		return nil
	}
}

// WithScriptMaxExecutionTime is an option that sets the js max execution time of the Config.
func WithScriptMaxExecutionTime(scriptMaxExecutionTime time.Duration) Option {
	return func(c *Config) error {
		c.ScriptMaxExecutionTime = scriptMaxExecutionTime
		return nil
	}
}

// WithProperties is an option that sets the global properties of the Config.
func WithProperties(properties map[string]string) Option {
	return func(c *Config) error {
		c.Properties = properties
		return nil
	}
}

// WithAspects is an option that appends node aspects to the Config.
func WithAspects(aspects ...Aspect) Option {
	return func(c *Config) error {
		c.Aspects = append(c.Aspects, aspects...)
		return nil
	}
}
