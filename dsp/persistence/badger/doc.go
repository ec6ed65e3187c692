// Copyright 2024 go-dataspace
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package badger stores negotiations, agreements and transfer processes in an embedded
// badger database, on disk or in memory.
//
// Records are JSON documents keyed by their record ID. Lookups by PID and by agreement go
// through index keys scoped by role, so one database can hold both sides of a process.
// A write checks the stored version and updates the indexes in the same transaction.
package badger
