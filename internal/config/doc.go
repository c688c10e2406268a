// Package config provides configuration management for researchctl.
//
// Configuration is loaded from multiple sources and merged in order, with
// later sources overriding earlier ones:
//
//  1. Default Configuration (embedded in binary)
//     - The deep-researcher stack: docker-compose.yml plus docker-compose.dev.yml,
//       .env.example as the .env template, api and frontend health targets.
//
//  2. User Configuration (~/.config/researchctl/config.yaml)
//
//  3. Project Configuration (<root>/.researchctl/config.yaml)
//     - Lets a checkout pin its own compose file names or ports.
//
// # Configuration Structure
//
//	project: deep-researcher
//	namePrefix: deep-researcher
//	overlays:
//	  base: docker-compose.yml
//	  dev: docker-compose.dev.yml
//	env:
//	  template: .env.example
//	  target: .env
//	  requiredKeys: [OPENAI_API_KEY]
//	health:
//	  interval: 2s
//	  maxAttempts: 30
//	  targets:
//	    - name: api
//	      kind: http
//	      address: http://localhost:${API_PORT}/health
//
// Target addresses and endpoint URLs may reference variables from the runtime
// .env file; they are expanded by the bootstrap package once that file exists.
//
// The loaded Config is bound to the invocation root in a Runtime value which
// every component receives explicitly; nothing below cmd/ consults the working
// directory.
package config
