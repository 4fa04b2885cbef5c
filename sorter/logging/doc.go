// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

/*
Package logging configures the diagnostic log stream.

The sorter emits a single stream: its own operational logs and the fault
events of the periodic tasks. The stream goes to stderr by default, or to a
serial console when one is configured, the way the sorter firmware printed
to its UART.
*/
package logging
